// Package tryscript builds a single virtual user for step-through debugging.
//
// A try-script session bypasses scheduling entirely: it declares a scenario
// holding only the requested type, wires an event bus whose only listeners
// record events for inspection, and constructs exactly one user with its
// debug flag set. The caller then drives the user directly:
//
//	s, err := tryscript.New(ctx, exampleapp.Type1(), "ExampleProfile", tryscript.Options{})
//	if err != nil {
//		return err
//	}
//	s.SetTestData(feeder.Record{"username": "appuser1", "password": pw})
//	_ = s.Start(ctx)
//	_ = s.RunTask(ctx, "test_case_1")
package tryscript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/crankstep/internal/feeder"
	"github.com/torosent/crankstep/internal/logging"
	"github.com/torosent/crankstep/internal/metrics"
	"github.com/torosent/crankstep/internal/pacing"
	"github.com/torosent/crankstep/internal/profile"
	"github.com/torosent/crankstep/internal/scenario"
	"github.com/torosent/crankstep/internal/vuser"
)

// DefaultProfileDir is where profiles are read from when Options.Profiles is nil.
const DefaultProfileDir = "profiles"

// Options tune a session. The zero value reads profiles from ./profiles, logs
// to a colored console on stderr and keeps the type's own pacing.
type Options struct {
	Profiles profile.Resolver
	Logger   *zap.Logger
	Tracer   trace.Tracer
	// Pacing replaces the type's think-time.
	Pacing pacing.Sampler
	// NoThink forces zero think-time and wins over Pacing.
	NoThink bool
	// TestData is handed to the user at construction.
	TestData feeder.Record
	// Listeners receive events in addition to the session's recorder and collector.
	Listeners []metrics.Emitter
}

// Session is one debug user plus what it emitted.
type Session struct {
	*vuser.User

	Scenario  *scenario.Scenario
	Recorder  *metrics.Recorder
	Collector *metrics.Collector
}

// New builds the session's single user of typ, resolving host as its profile.
func New(ctx context.Context, typ vuser.Type, host string, opts Options) (*Session, error) {
	sc, err := scenario.New(scenario.Entry{Type: typ.Name, Weight: 1, Pacing: typ.Pacing})
	if err != nil {
		return nil, fmt.Errorf("tryscript: %w", err)
	}
	if opts.Pacing != nil {
		sc = sc.Override(opts.Pacing)
	}
	if opts.NoThink {
		sc = sc.Override(pacing.Constant(0))
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.Console(os.Stderr, "info")
		if err != nil {
			return nil, err
		}
	}
	profiles := opts.Profiles
	if profiles == nil {
		profiles = profile.NewFileResolver(DefaultProfileDir)
	}

	recorder := metrics.NewRecorder()
	collector := metrics.NewCollector()
	bus := metrics.NewBus(recorder, collector)
	for _, l := range opts.Listeners {
		bus.Subscribe(l)
	}

	u, err := vuser.New(ctx, vuser.Env{
		Scenario: sc,
		Profiles: profiles,
		Events:   bus,
		Tracer:   opts.Tracer,
		Logger:   logger,
	}, typ, vuser.Options{
		Host:     host,
		Debug:    true,
		TestData: opts.TestData,
	})
	if err != nil {
		return nil, err
	}

	return &Session{User: u, Scenario: sc, Recorder: recorder, Collector: collector}, nil
}

// Events returns what the user emitted so far, in order.
func (s *Session) Events() []metrics.Event {
	return s.Recorder.Events()
}

// Stats aggregates the emitted events.
func (s *Session) Stats() metrics.Stats {
	return s.Collector.Stats(s.Collector.Elapsed())
}

// RunAll runs the startup hook, then each task once, then the shutdown hook.
// tasks selects tasks by name in the given order; empty means all, in
// declaration order. Step failures are only visible in the events; the
// returned error joins hook and task errors.
func (s *Session) RunAll(ctx context.Context, tasks ...string) error {
	s.Collector.Start()
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if len(tasks) == 0 {
		for _, t := range s.Tasks() {
			tasks = append(tasks, t.Name)
		}
	}

	var errs []error
	for _, name := range tasks {
		if ctx.Err() != nil {
			break
		}
		started := time.Now()
		err := s.RunTask(ctx, name)
		s.Log().Info("task finished", zap.String("task", name), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		if err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", name, err))
		}
	}

	if err := s.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop: %w", err))
	}
	return errors.Join(errs...)
}
