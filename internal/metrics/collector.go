package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector aggregates step outcomes overall and per step name.
type Collector struct {
	mu    sync.Mutex
	total *series
	steps map[string]*series
	start time.Time
}

// series holds the running aggregates for one group of events.
type series struct {
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByType map[string]int64
}

// Stats represents aggregated metrics.
type Stats struct {
	Total       int64         `json:"total"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Latency  time.Duration `json:"-"`
	P90Latency  time.Duration `json:"-"`
	P95Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`
	Duration    time.Duration `json:"-"`
	StepsPerSec float64       `json:"steps_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64              `json:"min_latency_ms"`
	MaxLatencyMs  float64              `json:"max_latency_ms"`
	MeanLatencyMs float64              `json:"mean_latency_ms"`
	P50LatencyMs  float64              `json:"p50_latency_ms"`
	P90LatencyMs  float64              `json:"p90_latency_ms"`
	P95LatencyMs  float64              `json:"p95_latency_ms"`
	P99LatencyMs  float64              `json:"p99_latency_ms"`
	DurationMs    float64              `json:"duration_ms"`
	Errors        map[string]int       `json:"errors,omitempty"`
	Steps         map[string]StepStats `json:"steps,omitempty"`
}

// StepStats is the per-step-name breakdown.
type StepStats struct {
	Total         int64          `json:"total"`
	Successes     int64          `json:"successes"`
	Failures      int64          `json:"failures"`
	MinLatency    time.Duration  `json:"-"`
	MaxLatency    time.Duration  `json:"-"`
	MeanLatency   time.Duration  `json:"-"`
	P50Latency    time.Duration  `json:"-"`
	P99Latency    time.Duration  `json:"-"`
	MinLatencyMs  float64        `json:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	Errors        map[string]int `json:"errors,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		total: newSeries(),
		steps: make(map[string]*series),
		start: time.Now(),
	}
}

func newSeries() *series {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &series{
		hist:         hdrhistogram.New(1, 60_000_000, 3),
		errorsByType: make(map[string]int64),
	}
}

// Start resets the reference time used for throughput.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since the collector was created or last started.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Emit records ev. Collector can be subscribed to a Bus directly.
func (c *Collector) Emit(ev Event) {
	c.Record(ev.Name, ev.Latency(), ev.Err)
}

// Record adds one outcome for the named step.
func (c *Collector) Record(name string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total.record(latency, err)
	s, ok := c.steps[name]
	if !ok {
		s = newSeries()
		c.steps[name] = s
	}
	s.record(latency, err)
}

func (s *series) record(latency time.Duration, err error) {
	if latency < 0 {
		latency = 0
	}
	// Sub-microsecond latencies, zero included, land in the lowest bucket so
	// percentiles cover every event.
	us := latency.Microseconds()
	if us < s.hist.LowestTrackableValue() {
		us = s.hist.LowestTrackableValue()
	}
	if us > s.hist.HighestTrackableValue() {
		us = s.hist.HighestTrackableValue()
	}
	_ = s.hist.RecordValue(us)
	s.sumLatency += latency

	if s.successes+s.failures == 0 || latency < s.minLatency {
		s.minLatency = latency
	}
	if latency > s.maxLatency {
		s.maxLatency = latency
	}

	if err == nil {
		s.successes++
		return
	}
	s.failures++
	s.errorsByType[FriendlyErrorName(fmt.Sprintf("%T", err))]++
}

func (s *series) mean() time.Duration {
	total := s.successes + s.failures
	if total == 0 {
		return 0
	}
	return time.Duration(int64(s.sumLatency) / total)
}

func (s *series) quantile(q float64) time.Duration {
	if s.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(s.hist.ValueAtQuantile(q)) * time.Microsecond
}

func (s *series) errors() map[string]int {
	if len(s.errorsByType) == 0 {
		return nil
	}
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = int(v)
	}
	return out
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.total
	total := t.successes + t.failures
	stats := Stats{
		Total:       total,
		Successes:   t.successes,
		Failures:    t.failures,
		MinLatency:  t.minLatency,
		MaxLatency:  t.maxLatency,
		MeanLatency: t.mean(),
		P50Latency:  t.quantile(50),
		P90Latency:  t.quantile(90),
		P95Latency:  t.quantile(95),
		P99Latency:  t.quantile(99),
		Errors:      t.errors(),
	}

	stats.MinLatencyMs = millis(stats.MinLatency)
	stats.MaxLatencyMs = millis(stats.MaxLatency)
	stats.MeanLatencyMs = millis(stats.MeanLatency)
	stats.P50LatencyMs = millis(stats.P50Latency)
	stats.P90LatencyMs = millis(stats.P90Latency)
	stats.P95LatencyMs = millis(stats.P95Latency)
	stats.P99LatencyMs = millis(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = millis(elapsed)
	if elapsed > 0 && total > 0 {
		stats.StepsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.steps) > 0 {
		stats.Steps = make(map[string]StepStats, len(c.steps))
		for name, s := range c.steps {
			step := StepStats{
				Total:       s.successes + s.failures,
				Successes:   s.successes,
				Failures:    s.failures,
				MinLatency:  s.minLatency,
				MaxLatency:  s.maxLatency,
				MeanLatency: s.mean(),
				P50Latency:  s.quantile(50),
				P99Latency:  s.quantile(99),
				Errors:      s.errors(),
			}
			step.MinLatencyMs = millis(step.MinLatency)
			step.MaxLatencyMs = millis(step.MaxLatency)
			step.MeanLatencyMs = millis(step.MeanLatency)
			step.P50LatencyMs = millis(step.P50Latency)
			step.P99LatencyMs = millis(step.P99Latency)
			stats.Steps[name] = step
		}
	}

	return stats
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
