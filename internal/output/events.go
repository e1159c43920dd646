package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torosent/crankstep/internal/metrics"
)

// EventRecord is the serializable form of a metrics.Event.
type EventRecord struct {
	RequestType    string    `json:"request_type"`
	Name           string    `json:"name"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	ResponseLength int64     `json:"response_length"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	ErrorType      string    `json:"error_type,omitempty"`
	User           string    `json:"user,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewEventRecord converts ev.
func NewEventRecord(ev metrics.Event) EventRecord {
	rec := EventRecord{
		RequestType:    ev.RequestType,
		Name:           ev.Name,
		ResponseTimeMs: ev.ResponseTime,
		ResponseLength: ev.ResponseLength,
		Success:        ev.Success(),
		User:           ev.User,
		Timestamp:      ev.Timestamp,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
		rec.ErrorType = metrics.FriendlyErrorName(fmt.Sprintf("%T", ev.Err))
	}
	return rec
}

func formatEvent(ev metrics.Event) string {
	status := "OK  "
	if !ev.Success() {
		status = "FAIL"
	}
	line := fmt.Sprintf("%s %-5s %-32s %10.1fms", status, ev.RequestType, ev.Name, ev.ResponseTime)
	if ev.Err != nil {
		line += "  " + ev.Err.Error()
	}
	return line
}

// EventPrinter is a metrics.Emitter that writes each event as it arrives.
type EventPrinter struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

// NewEventPrinter returns a printer writing to w.
func NewEventPrinter(w io.Writer) *EventPrinter {
	if w == nil {
		w = io.Discard
	}
	return &EventPrinter{w: w}
}

// Emit implements metrics.Emitter.
func (p *EventPrinter) Emit(ev metrics.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	fmt.Fprintf(p.w, "%3d  %s\n", p.n, formatEvent(ev))
}
