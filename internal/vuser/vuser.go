package vuser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/crankstep/internal/feeder"
	"github.com/torosent/crankstep/internal/metrics"
	"github.com/torosent/crankstep/internal/pacing"
	"github.com/torosent/crankstep/internal/profile"
	"github.com/torosent/crankstep/internal/scenario"
	"github.com/torosent/crankstep/internal/step"
)

var (
	// ErrUnknownTask is returned by RunTask for a name the behavior does not define.
	ErrUnknownTask = errors.New("unknown task")
	// ErrNotInScenario is returned when a type is instantiated that the scenario does not declare.
	ErrNotInScenario = errors.New("user type not declared in scenario")
	// ErrNoTasks is returned by Loop when the behavior has nothing to run.
	ErrNoTasks = errors.New("user type has no tasks")
)

// Task is a named unit of behavior made of sequential steps. Weight biases
// selection in Loop; zero counts as one.
type Task struct {
	Name   string
	Weight int
	Run    func(ctx context.Context) error
}

// Behavior is the domain part of a user type.
type Behavior interface {
	Tasks() []Task
}

// Starter is implemented by behaviors with a startup hook.
type Starter interface {
	OnStart(ctx context.Context) error
}

// Stopper is implemented by behaviors with a shutdown hook.
type Stopper interface {
	OnStop(ctx context.Context) error
}

// Type declares a kind of virtual user.
type Type struct {
	Name string
	// Hosts lists logical host names the type needs from its profile.
	Hosts []string
	// Pacing is the default think-time when the scenario sets none.
	Pacing pacing.Sampler
	New    func(u *User) (Behavior, error)
}

// Env is the runtime shared by every user of a run.
type Env struct {
	Scenario *scenario.Scenario
	Profiles profile.Resolver
	Events   metrics.Emitter
	Tracer   trace.Tracer
	Logger   *zap.Logger
	// TestData, when set, gives every new user one record.
	TestData feeder.Feeder
}

// Options are per-instance construction parameters.
type Options struct {
	// Host is the profile name the user resolves.
	Host string
	// Debug marks a directly driven instance.
	Debug    bool
	TestData feeder.Record
}

// User is one virtual user instance. Its methods are meant to be called from
// a single goroutine.
type User struct {
	id       string
	typ      Type
	env      Env
	host     string
	debug    bool
	log      *zap.Logger
	profile  *profile.Profile
	engine   *step.Engine
	testData feeder.Record
	behavior Behavior
	rnd      *rand.Rand
}

type initializer struct {
	name string
	run  func(ctx context.Context, u *User, opts Options) error
}

var initializers = []initializer{
	{"identity", initIdentity},
	{"profile", initProfile},
	{"steps", initSteps},
	{"testdata", initTestData},
	{"behavior", initBehavior},
}

// Initializers returns the names of the construction phases in the order New runs them.
func Initializers() []string {
	names := make([]string, len(initializers))
	for i, in := range initializers {
		names[i] = in.name
	}
	return names
}

// New builds a user of typ. Profile errors are returned wrapped and can be
// matched with errors.As against *profile.Error.
func New(ctx context.Context, env Env, typ Type, opts Options) (*User, error) {
	if typ.Name == "" {
		return nil, errors.New("vuser: type name is required")
	}
	if typ.New == nil {
		return nil, fmt.Errorf("vuser: type %q has no constructor", typ.Name)
	}
	if env.Profiles == nil {
		return nil, errors.New("vuser: env has no profile resolver")
	}
	if env.Events == nil {
		env.Events = metrics.Discard
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}

	u := &User{typ: typ, env: env, host: opts.Host, debug: opts.Debug}
	for _, in := range initializers {
		if err := in.run(ctx, u, opts); err != nil {
			return nil, fmt.Errorf("%s: init %s: %w", typ.Name, in.name, err)
		}
	}
	return u, nil
}

func initIdentity(_ context.Context, u *User, _ Options) error {
	id := ulid.Make()
	u.id = id.String()
	u.rnd = rand.New(rand.NewSource(int64(id.Time()) ^ int64(time.Now().UnixNano())))
	u.log = u.env.Logger.Named(u.typ.Name).With(zap.String("user_id", u.id))
	return nil
}

func initProfile(ctx context.Context, u *User, opts Options) error {
	p, err := u.env.Profiles.Resolve(ctx, opts.Host)
	if err != nil {
		return err
	}
	if err := p.Require(u.typ.Hosts...); err != nil {
		return err
	}
	u.profile = p
	u.log.Debug("profile resolved", zap.String("profile", p.Name()), zap.Strings("hosts", p.HostNames()))
	return nil
}

func initSteps(_ context.Context, u *User, _ Options) error {
	sampler := u.typ.Pacing
	if u.env.Scenario != nil {
		entry, ok := u.env.Scenario.Lookup(u.typ.Name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotInScenario, u.typ.Name)
		}
		if entry.Pacing != nil {
			sampler = entry.Pacing
		}
	}
	if sampler == nil {
		sampler = pacing.Constant(0)
	}
	u.engine = step.New(step.Options{
		Pacing:   sampler,
		Events:   u.env.Events,
		Logger:   u.log,
		Tracer:   u.env.Tracer,
		UserType: u.typ.Name,
		UserID:   u.id,
	})
	return nil
}

func initTestData(ctx context.Context, u *User, opts Options) error {
	if opts.TestData != nil {
		u.testData = opts.TestData.Clone()
		return nil
	}
	if u.env.TestData == nil {
		return nil
	}
	rec, err := u.env.TestData.Next(ctx)
	if err != nil {
		return fmt.Errorf("next test data record: %w", err)
	}
	u.testData = rec
	return nil
}

func initBehavior(_ context.Context, u *User, _ Options) error {
	b, err := u.typ.New(u)
	if err != nil {
		return err
	}
	if b == nil {
		return errors.New("constructor returned no behavior")
	}
	u.behavior = b
	return nil
}

// ID is the instance's ULID.
func (u *User) ID() string { return u.id }

// Type returns the user type the instance was built from.
func (u *User) Type() Type { return u.typ }

// Host is the profile name the instance resolved.
func (u *User) Host() string { return u.host }

// Profile returns the profile resolved at construction.
func (u *User) Profile() *profile.Profile { return u.profile }

// Debug reports whether the instance is driven directly, as in try mode.
func (u *User) Debug() bool { return u.debug }

// Log returns the instance logger.
func (u *User) Log() *zap.Logger { return u.log }

// Steps returns the step engine, for use with step.Run.
func (u *User) Steps() *step.Engine { return u.engine }

// Behavior returns the domain behavior built by Type.New.
func (u *User) Behavior() Behavior { return u.behavior }

// TestData returns the current test-data record, nil when none is set.
func (u *User) TestData() feeder.Record { return u.testData }

// SetTestData replaces the test-data record.
func (u *User) SetTestData(rec feeder.Record) { u.testData = rec.Clone() }

// Step runs fn as a named step through the instance's engine.
func (u *User) Step(ctx context.Context, name string, fn func(context.Context) error) step.Outcome[struct{}] {
	return u.engine.Step(ctx, name, fn)
}

// Endpoint returns the URL of a logical host joined with path.
func (u *User) Endpoint(host, path string) string {
	base, _ := u.profile.Host(host)
	return base + path
}

// Start runs the behavior's startup hook, if any.
func (u *User) Start(ctx context.Context) error {
	if s, ok := u.behavior.(Starter); ok {
		return s.OnStart(ctx)
	}
	return nil
}

// Stop runs the behavior's shutdown hook, if any.
func (u *User) Stop(ctx context.Context) error {
	if s, ok := u.behavior.(Stopper); ok {
		return s.OnStop(ctx)
	}
	return nil
}

// Tasks returns the behavior's tasks in declaration order.
func (u *User) Tasks() []Task {
	return u.behavior.Tasks()
}

// RunTask runs the named task once.
func (u *User) RunTask(ctx context.Context, name string) error {
	for _, t := range u.Tasks() {
		if t.Name == name {
			u.log.Debug("running task", zap.String("task", name))
			return t.Run(ctx)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownTask, name)
}

// Loop runs weighted random tasks until ctx ends. Task errors are logged and
// do not stop the loop.
func (u *User) Loop(ctx context.Context) error {
	tasks := u.Tasks()
	if len(tasks) == 0 {
		return ErrNoTasks
	}
	total := 0
	for _, t := range tasks {
		total += taskWeight(t)
	}
	for ctx.Err() == nil {
		t := pickTask(tasks, total, u.rnd)
		if err := t.Run(ctx); err != nil && ctx.Err() == nil {
			u.log.Warn("task returned error", zap.String("task", t.Name), zap.Error(err))
		}
	}
	return nil
}

func taskWeight(t Task) int {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

func pickTask(tasks []Task, total int, rnd *rand.Rand) Task {
	n := rnd.Intn(total)
	for _, t := range tasks {
		w := taskWeight(t)
		if n < w {
			return t
		}
		n -= w
	}
	return tasks[len(tasks)-1]
}
