package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/crankstep/internal/config"
	"github.com/torosent/crankstep/internal/feeder"
	"github.com/torosent/crankstep/internal/logging"
	"github.com/torosent/crankstep/internal/metrics"
	"github.com/torosent/crankstep/internal/output"
	"github.com/torosent/crankstep/internal/pacing"
	"github.com/torosent/crankstep/internal/profile"
	"github.com/torosent/crankstep/internal/scenario"
	"github.com/torosent/crankstep/internal/threshold"
	"github.com/torosent/crankstep/internal/tracing"
	"github.com/torosent/crankstep/internal/tryscript"
	"github.com/torosent/crankstep/internal/vuser"
)

// errThresholds is returned when the run completed but a threshold failed.
var errThresholds = errors.New("thresholds failed")

func newTryCmd(reg *vuser.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "try",
		Short: "Run one user instance through its tasks once",
		Long: `Builds a single debug instance of a user type against a profile,
runs its start hook and each task once, and prints the step outcomes.`,
		Example: `  crankstep try --host ExampleProfile -u ExampleAppType1User --data username=appuser1,password=secret
  crankstep try --host ExampleProfile -u ExampleAppType1User --data username=appuser1 --prompt password
  crankstep try --host ExampleProfile -u ExampleAppType1User --task test_case_2 --no-think`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runTry(cmd, reg, cfg)
		},
	}
	config.RegisterTryFlags(cmd)
	return cmd
}

func runTry(cmd *cobra.Command, reg *vuser.Registry, cfg *config.Config) error {
	typ, err := lookupType(reg, cfg.UserType)
	if err != nil {
		return err
	}
	if cfg.Host == "" {
		return errors.New("--host is required")
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, cfg.Timeout)
		defer cancelTimeout()
	}

	provider, err := tracing.Init(ctx, cfg.Tracing, attribute.String("crankstep.mode", "try"))
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	data, err := testData(ctx, cfg)
	if err != nil {
		return err
	}
	if len(cfg.Prompt) > 0 {
		secrets, err := promptValues(cmd.InOrStdin(), cmd.ErrOrStderr(), cfg.Prompt)
		if err != nil {
			return err
		}
		if data == nil {
			data = feeder.Record{}
		}
		for k, v := range secrets {
			data[k] = v
		}
	}
	sampler, err := configuredPacing(cfg.Users, typ.Name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var listeners []metrics.Emitter
	if !cfg.JSONOutput {
		listeners = append(listeners, output.NewEventPrinter(out))
	}

	session, err := tryscript.New(ctx, typ, cfg.Host, tryscript.Options{
		Profiles:  profile.Cached(profile.NewFileResolver(cfg.ProfileDir)),
		Logger:    logger,
		Tracer:    provider.Tracer(),
		Pacing:    sampler,
		NoThink:   cfg.NoThink,
		TestData:  data,
		Listeners: listeners,
	})
	if err != nil {
		return err
	}
	logger.Debug("try session ready",
		zap.String("user_type", typ.Name),
		zap.String("host", cfg.Host),
		zap.String("pacing", pacing.Describe(session.Steps().Pacing())),
		zap.Strings("test_data", session.TestData().Keys()),
	)

	runErr := session.RunAll(ctx, cfg.Tasks...)

	stats := session.Stats()
	results := threshold.NewEvaluator(thresholds).Evaluate(stats)
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(out, output.NewReport(stats, session.Events(), results)); err != nil {
			return err
		}
	} else {
		output.PrintReport(out, stats)
		output.PrintThresholds(out, results)
	}

	if runErr != nil {
		return runErr
	}
	if !threshold.AllPassed(results) {
		return errThresholds
	}
	if stats.Failures > 0 {
		return fmt.Errorf("%d steps failed", stats.Failures)
	}
	return nil
}

func lookupType(reg *vuser.Registry, name string) (vuser.Type, error) {
	if name == "" {
		return vuser.Type{}, fmt.Errorf("--user is required (available: %s)", strings.Join(reg.Names(), ", "))
	}
	typ, ok := reg.Lookup(name)
	if !ok {
		return vuser.Type{}, fmt.Errorf("unknown user type %q (available: %s)", name, strings.Join(reg.Names(), ", "))
	}
	return typ, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, error) {
	if strings.EqualFold(cfg.LogFormat, "json") {
		return logging.New(cfg.LogLevel, cfg.LogFormat)
	}
	return logging.Console(cmd.ErrOrStderr(), cfg.LogLevel)
}

// testData merges the first record of the data file with --data pairs, the
// pairs winning. It returns nil when neither is set.
func testData(ctx context.Context, cfg *config.Config) (feeder.Record, error) {
	var rec feeder.Record
	if cfg.DataFile != "" {
		first, err := feeder.First(ctx, cfg.DataFile)
		if err != nil {
			return nil, fmt.Errorf("data file: %w", err)
		}
		rec = first
	}
	if len(cfg.TestData) > 0 {
		if rec == nil {
			rec = feeder.Record{}
		}
		for k, v := range cfg.TestData {
			rec[k] = v
		}
	}
	return rec, nil
}

// configuredPacing returns the think-time the config file declares for
// userType, or nil to keep the type's own.
func configuredPacing(users []config.UserConfig, userType string) (pacing.Sampler, error) {
	if len(users) == 0 {
		return nil, nil
	}
	sc, err := scenario.FromConfig(users)
	if err != nil {
		return nil, err
	}
	entry, ok := sc.Lookup(userType)
	if !ok {
		return nil, nil
	}
	return entry.Pacing, nil
}
