// Package output renders step statistics and event streams for the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/torosent/crankstep/internal/metrics"
	"github.com/torosent/crankstep/internal/threshold"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Step Results ---")
	fmt.Fprintf(w, "Total Steps:       %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Steps/sec:         %.2f\n", stats.StepsPerSec)
	fmt.Fprintln(w, "\nStep Duration:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		writeErrors(w, stats.Errors, "  ")
	}

	if len(stats.Steps) == 0 {
		return
	}
	fmt.Fprintln(w, "\nStep Breakdown:")
	names := make([]string, 0, len(stats.Steps))
	for name := range stats.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := stats.Steps[name]
		fmt.Fprintf(w, "  - %s: total=%d, successes=%d, failures=%d, mean=%s, p99=%s\n",
			name, s.Total, s.Successes, s.Failures, s.MeanLatency, s.P99Latency)
		if len(s.Errors) > 0 {
			writeErrors(w, s.Errors, "      ")
		}
	}
}

// PrintThresholds writes one line per threshold result and a summary.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	failed := 0
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
		if !r.Pass {
			failed++
		}
	}
	if failed == 0 {
		fmt.Fprintf(w, "All %d thresholds passed\n", len(results))
	} else {
		fmt.Fprintf(w, "%d of %d thresholds failed\n", failed, len(results))
	}
}

// Report is the JSON document written by PrintJSONReport.
type Report struct {
	Stats      metrics.Stats   `json:"stats"`
	Events     []EventRecord   `json:"events,omitempty"`
	Thresholds []ThresholdLine `json:"thresholds,omitempty"`
}

// ThresholdLine is the JSON form of a threshold result.
type ThresholdLine struct {
	Expression string  `json:"expression"`
	Actual     float64 `json:"actual"`
	Pass       bool    `json:"pass"`
}

// NewReport assembles a Report.
func NewReport(stats metrics.Stats, events []metrics.Event, results []threshold.Result) Report {
	r := Report{Stats: stats}
	for _, ev := range events {
		r.Events = append(r.Events, NewEventRecord(ev))
	}
	for _, res := range results {
		r.Thresholds = append(r.Thresholds, ThresholdLine{
			Expression: res.Threshold.Raw,
			Actual:     res.Actual,
			Pass:       res.Pass,
		})
	}
	return r
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeErrors(w io.Writer, errs map[string]int, indent string) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s%s: %d\n", indent, k, errs[k])
	}
}
