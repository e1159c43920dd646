package step

import (
	"context"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/crankstep/internal/metrics"
	"github.com/torosent/crankstep/internal/pacing"
	"github.com/torosent/crankstep/internal/tracing"
)

// Options configures an Engine. Zero values are usable: no pacing, events
// discarded, logs dropped, spans disabled.
type Options struct {
	Pacing   pacing.Sampler
	Events   metrics.Emitter
	Logger   *zap.Logger
	Tracer   trace.Tracer
	UserType string
	UserID   string

	// Clock and Wait replace time.Now and pacing.Wait in tests.
	Clock func() time.Time
	Wait  func(ctx context.Context, d time.Duration) error
}

// Engine executes steps for a single user instance. It is used from the
// instance's own goroutine; steps never run concurrently with each other.
type Engine struct {
	pacing   pacing.Sampler
	events   metrics.Emitter
	log      *zap.Logger
	tracer   trace.Tracer
	userType string
	userID   string
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration) error
}

// New builds an Engine from opts.
func New(opts Options) *Engine {
	e := &Engine{
		pacing:   opts.Pacing,
		events:   opts.Events,
		log:      opts.Logger,
		tracer:   opts.Tracer,
		userType: opts.UserType,
		userID:   opts.UserID,
		now:      opts.Clock,
		wait:     opts.Wait,
	}
	if e.pacing == nil {
		e.pacing = pacing.Constant(0)
	}
	if e.events == nil {
		e.events = metrics.Discard
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.wait == nil {
		e.wait = pacing.Wait
	}
	return e
}

// Pacing returns the sampler consulted before each step.
func (e *Engine) Pacing() pacing.Sampler {
	return e.pacing
}

// Step runs fn as the step called name. See [Run].
func (e *Engine) Step(ctx context.Context, name string, fn func(context.Context) error) Outcome[struct{}] {
	var wrapped func(context.Context) (struct{}, error)
	if fn != nil {
		wrapped = func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		}
	}
	return Run(ctx, e, name, wrapped)
}

// Run paces, times and executes fn as the step called name and reports the
// outcome on the engine's event bus. Errors and panics from fn are returned
// in the Outcome and never propagate.
func Run[T any](ctx context.Context, e *Engine, name string, fn func(context.Context) (T, error)) Outcome[T] {
	out := Outcome[T]{Name: name}

	think := e.pacing.Sample()
	if err := e.wait(ctx, think); err != nil {
		out.Skipped = true
		out.Err = err
		e.log.Debug("skipped step", zap.String("step", name), zap.Error(err))
		return out
	}

	e.log.Info("begin step", zap.String("step", name), zap.Duration("think_time", think))
	start := e.now()
	spanCtx, span := tracing.StartStepSpan(ctx, e.tracer, e.userType, e.userID, name)

	value, err := invoke(spanCtx, fn)

	duration := e.now().Sub(start)
	if duration < 0 {
		duration = 0
	}
	tracing.EndSpan(span, err)

	e.events.Emit(metrics.Event{
		RequestType:    metrics.RequestTypeStep,
		Name:           name,
		ResponseTime:   float64(duration) / float64(time.Millisecond),
		ResponseLength: 0,
		Err:            err,
		User:           e.userID,
		Timestamp:      start,
	})

	out.Duration = duration
	if err != nil {
		out.Err = err
		fields := []zap.Field{zap.String("step", name), zap.Duration("duration", duration), zap.Error(err)}
		if pe, ok := err.(*PanicError); ok {
			fields = append(fields, zap.ByteString("stack", pe.Stack))
		}
		e.log.Error("failed step", fields...)
		return out
	}

	e.log.Info("leaving step", zap.String("step", name), zap.Duration("duration", duration))
	out.Value = value
	return out
}

func invoke[T any](ctx context.Context, fn func(context.Context) (T, error)) (value T, err error) {
	if fn == nil {
		return value, ErrNilBehavior
	}
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	value, err = fn(ctx)
	if err != nil {
		var zero T
		value = zero
	}
	return value, err
}
