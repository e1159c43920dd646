// Package threshold evaluates pass/fail gates over step statistics.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/crankstep/internal/metrics"
)

// Metric names accepted in threshold expressions.
const (
	MetricStepDuration = "step_duration"
	MetricStepFailed   = "step_failed"
	MetricSteps        = "steps"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // step_duration, step_failed or steps
	Step      string  // optional step name; empty means all steps
	Aggregate string  // e.g., "p95", "p99", "avg", "max", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided stats.
func (e *Evaluator) Evaluate(stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, stats))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, stats metrics.Stats) Result {
	actual, err := extractMetricValue(t, stats)
	if err != nil {
		return Result{
			Threshold: t,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: error: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

var pattern = regexp.MustCompile(`^([a-z_]+)(?:\{([^}]+)\})?:([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
//   - "step_duration:p99 < 500"                 (latency in ms over all steps)
//   - "step_duration{TC0_01 Login}:avg < 200"   (latency of one step)
//   - "step_failed:rate < 0.01"                 (failure rate as decimal)
//   - "step_failed{TC1_02 Upload a PDF}:count == 0"
//   - "steps:count >= 3"                        (steps executed)
//   - "steps:rate > 1"                          (steps per second)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric[{step}]:aggregate operator value, e.g., 'step_duration:p99 < 500')", s)
	}

	metric, stepName, aggregate, operator, valueStr := matches[1], strings.TrimSpace(matches[2]), matches[3], matches[4], matches[5]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if _, ok := aggregates[metric]; !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: step_duration, step_failed, steps)", metric)
	}
	if !slices.Contains(knownAggregates, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p95, p99, avg, min, max, rate, count)", aggregate)
	}
	if _, ok := comparators[operator]; !ok {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Step:      stepName,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var problems []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(problems, "; "))
	}

	return result, nil
}

var knownAggregates = []string{"p50", "p90", "p95", "p99", "avg", "min", "max", "rate", "count"}

// view is what a threshold can read for the whole run or a single step.
// Aggregates missing from the per-step breakdown are absent from values.
type view struct {
	total, failures int64
	values          map[string]float64
}

func selectView(t Threshold, stats metrics.Stats) (view, error) {
	if t.Step == "" {
		return view{
			total:    stats.Total,
			failures: stats.Failures,
			values: map[string]float64{
				"p50": stats.P50LatencyMs, "p90": stats.P90LatencyMs,
				"p95": stats.P95LatencyMs, "p99": stats.P99LatencyMs,
				"avg": stats.MeanLatencyMs, "min": stats.MinLatencyMs, "max": stats.MaxLatencyMs,
				"steps_per_sec": stats.StepsPerSec,
			},
		}, nil
	}
	s, ok := stats.Steps[t.Step]
	if !ok {
		return view{}, fmt.Errorf("no events recorded for step %q", t.Step)
	}
	return view{
		total:    s.Total,
		failures: s.Failures,
		values: map[string]float64{
			"p50": s.P50LatencyMs, "p99": s.P99LatencyMs,
			"avg": s.MeanLatencyMs, "min": s.MinLatencyMs, "max": s.MaxLatencyMs,
		},
	}, nil
}

type reader func(v view) (float64, error)

// fromValues reads key from the view, failing when only the run-wide
// breakdown tracks it.
func fromValues(key string) reader {
	return func(v view) (float64, error) {
		x, ok := v.values[key]
		if !ok {
			return 0, fmt.Errorf("%s is only tracked across all steps", key)
		}
		return x, nil
	}
}

// aggregates maps metric to the aggregates it supports.
var aggregates = map[string]map[string]reader{
	MetricStepDuration: {
		"p50": fromValues("p50"),
		"p90": fromValues("p90"),
		"p95": fromValues("p95"),
		"p99": fromValues("p99"),
		"avg": fromValues("avg"),
		"min": fromValues("min"),
		"max": fromValues("max"),
	},
	MetricStepFailed: {
		"count": func(v view) (float64, error) { return float64(v.failures), nil },
		"rate": func(v view) (float64, error) {
			if v.total == 0 {
				return 0, nil
			}
			return float64(v.failures) / float64(v.total), nil
		},
	},
	MetricSteps: {
		"count": func(v view) (float64, error) { return float64(v.total), nil },
		"rate":  fromValues("steps_per_sec"),
	},
}

func extractMetricValue(t Threshold, stats metrics.Stats) (float64, error) {
	byAggregate, ok := aggregates[t.Metric]
	if !ok {
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
	read, ok := byAggregate[t.Aggregate]
	if !ok {
		return 0, fmt.Errorf("unsupported aggregate %q for %s", t.Aggregate, t.Metric)
	}
	v, err := selectView(t, stats)
	if err != nil {
		return 0, err
	}
	return read(v)
}

const epsilon = 1e-9

var comparators = map[string]func(actual, expected float64) bool{
	"<":  func(a, e float64) bool { return a < e },
	"<=": func(a, e float64) bool { return a <= e || math.Abs(a-e) < epsilon },
	">":  func(a, e float64) bool { return a > e },
	">=": func(a, e float64) bool { return a >= e || math.Abs(a-e) < epsilon },
	"==": func(a, e float64) bool { return math.Abs(a-e) < epsilon },
}

func compareValues(actual float64, operator string, expected float64) bool {
	cmp, ok := comparators[operator]
	return ok && cmp(actual, expected)
}
