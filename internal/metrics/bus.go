package metrics

import "sync"

// Bus fans events out to subscribed listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners []Emitter
}

func NewBus(listeners ...Emitter) *Bus {
	b := &Bus{}
	for _, l := range listeners {
		b.Subscribe(l)
	}
	return b
}

// Subscribe registers a listener. Nil listeners are ignored.
func (b *Bus) Subscribe(l Emitter) {
	if l == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

// Emit delivers ev to every listener synchronously, in subscription order.
// Listeners run outside the lock and may subscribe further listeners, which
// see the next event.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	listeners := b.listeners[:len(b.listeners):len(b.listeners)]
	b.mu.RUnlock()
	for _, l := range listeners {
		l.Emit(ev)
	}
}

// Recorder retains every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded stream.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
