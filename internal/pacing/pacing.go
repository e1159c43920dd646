// Package pacing provides think-time samplers for virtual users.
//
// A [Sampler] yields the pause a user takes before each step. Samplers are
// configured per user type in a scenario and shared by every instance of that
// type, so all implementations here are safe for concurrent use and never
// return negative durations.
package pacing

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Sampler produces think-time durations.
type Sampler interface {
	Sample() time.Duration
}

// Func adapts a function to the Sampler interface. Negative results are clamped to zero.
type Func func() time.Duration

func (f Func) Sample() time.Duration {
	if f == nil {
		return 0
	}
	if d := f(); d > 0 {
		return d
	}
	return 0
}

// Describer is implemented by samplers that can explain themselves in reports.
type Describer interface {
	Describe() string
}

// Describe returns a short label for s.
func Describe(s Sampler) string {
	if s == nil {
		return "none"
	}
	if d, ok := s.(Describer); ok {
		return d.Describe()
	}
	return fmt.Sprintf("%T", s)
}

type constant struct {
	d time.Duration
}

// Constant always waits d.
func Constant(d time.Duration) Sampler {
	if d < 0 {
		d = 0
	}
	return constant{d: d}
}

func (c constant) Sample() time.Duration { return c.d }

func (c constant) Describe() string { return fmt.Sprintf("constant(%s)", c.d) }

// lockedRand serializes access to a math/rand source shared across goroutines.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}

func (l *lockedRand) expFloat64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.ExpFloat64()
}

type between struct {
	min, max time.Duration
	rnd      *lockedRand
}

// Between waits a uniformly distributed duration in [min, max].
// Bounds are swapped when given in the wrong order.
func Between(min, max time.Duration) Sampler {
	return BetweenSeeded(min, max, time.Now().UnixNano())
}

// BetweenSeeded is Between with a deterministic random source.
func BetweenSeeded(min, max time.Duration, seed int64) Sampler {
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	if max < min {
		min, max = max, min
	}
	return &between{min: min, max: max, rnd: newLockedRand(seed)}
}

func (b *between) Sample() time.Duration {
	span := b.max - b.min
	if span <= 0 {
		return b.min
	}
	return b.min + time.Duration(b.rnd.float64()*float64(span))
}

func (b *between) Describe() string { return fmt.Sprintf("between(%s, %s)", b.min, b.max) }

type exponential struct {
	mean   time.Duration
	sample func() float64
}

// Exponential waits an exponentially distributed duration with the given mean,
// so that steps across many users arrive approximately as a Poisson process.
func Exponential(mean time.Duration) Sampler {
	return ExponentialSeeded(mean, time.Now().UnixNano())
}

// ExponentialSeeded is Exponential with a deterministic random source.
func ExponentialSeeded(mean time.Duration, seed int64) Sampler {
	if mean < 0 {
		mean = 0
	}
	return &exponential{mean: mean, sample: newLockedRand(seed).expFloat64}
}

func (e *exponential) Sample() time.Duration {
	if e.mean <= 0 || e.sample == nil {
		return 0
	}
	delay := float64(e.mean) * e.sample()
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}

func (e *exponential) Describe() string { return fmt.Sprintf("exponential(mean %s)", e.mean) }

type throughput struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// Throughput paces all users sharing the sampler to at most perSecond steps per
// second with the given burst. Each sample reserves a slot and returns the delay
// until that slot opens.
func Throughput(perSecond float64, burst int) Sampler {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &throughput{limiter: rate.NewLimiter(limit, burst), now: time.Now}
}

func (t *throughput) Sample() time.Duration {
	r := t.limiter.ReserveN(t.now(), 1)
	if !r.OK() {
		return 0
	}
	if d := r.Delay(); d > 0 {
		return d
	}
	return 0
}

func (t *throughput) Describe() string {
	if t.limiter.Limit() == rate.Inf {
		return "throughput(unlimited)"
	}
	return fmt.Sprintf("throughput(%.2f/s, burst %d)", float64(t.limiter.Limit()), t.limiter.Burst())
}

// Wait suspends the calling goroutine for d or until ctx is done, whichever
// comes first. Other goroutines keep running while it waits.
func Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
