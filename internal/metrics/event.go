package metrics

import "time"

// RequestTypeStep tags events produced by the step engine, as opposed to raw
// transport requests.
const RequestTypeStep = "Step"

// Event is one outcome record. Failed events carry the captured error in Err.
type Event struct {
	RequestType    string
	Name           string
	ResponseTime   float64 // milliseconds
	ResponseLength int64
	Err            error
	User           string
	Timestamp      time.Time
}

// Success reports whether the event records a successful outcome.
func (e Event) Success() bool {
	return e.Err == nil
}

// Latency converts ResponseTime back into a duration.
func (e Event) Latency() time.Duration {
	if e.ResponseTime <= 0 {
		return 0
	}
	return time.Duration(e.ResponseTime * float64(time.Millisecond))
}

// Emitter receives outcome events. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) {
	if f != nil {
		f(ev)
	}
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})
