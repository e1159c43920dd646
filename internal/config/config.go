package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds everything the crankstep commands need before a user instance
// is built. Values are layered: defaults, config file, environment, flags.
type Config struct {
	ProfileDir string            `mapstructure:"profile_dir"`
	Host       string            `mapstructure:"host"`
	UserType   string            `mapstructure:"user"`
	Tasks      []string          `mapstructure:"tasks"`
	LogLevel   string            `mapstructure:"log_level"`
	LogFormat  string            `mapstructure:"log_format"`
	JSONOutput bool              `mapstructure:"json_output"`
	NoThink    bool              `mapstructure:"no_think"`
	TestData   map[string]string `mapstructure:"test_data"`
	DataFile   string            `mapstructure:"data_file"`
	Prompt     []string          `mapstructure:"-"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	Thresholds []string          `mapstructure:"thresholds"`
	Tracing    TracingConfig     `mapstructure:"tracing"`
	Users      []UserConfig      `mapstructure:"users"`
	ConfigFile string            `mapstructure:"-"`
}

// UserConfig declares one user type of a scenario.
type UserConfig struct {
	Type   string       `mapstructure:"type"`
	Weight int          `mapstructure:"weight"`
	Pacing PacingConfig `mapstructure:"pacing"`
}

type PacingKind string

const (
	PacingConstant    PacingKind = "constant"
	PacingBetween     PacingKind = "between"
	PacingExponential PacingKind = "exponential"
	PacingThroughput  PacingKind = "throughput"
)

// PacingConfig describes a think-time distribution. Which fields apply depends on Kind.
type PacingConfig struct {
	Kind  PacingKind    `mapstructure:"kind"`
	Value time.Duration `mapstructure:"value"` // constant
	Min   time.Duration `mapstructure:"min"`   // between
	Max   time.Duration `mapstructure:"max"`   // between
	Mean  time.Duration `mapstructure:"mean"`  // exponential
	Rate  float64       `mapstructure:"rate"`  // throughput, steps per second
	Burst int           `mapstructure:"burst"` // throughput
}

// IsZero reports whether no pacing was configured.
func (p PacingConfig) IsZero() bool {
	return p == PacingConfig{}
}

// TracingConfig configures OpenTelemetry export of step spans.
type TracingConfig struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether tracing was requested, either explicitly or by
// configuring an endpoint.
func (t TracingConfig) Enabled() bool {
	return t.Enable || strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate defaults to Enabled unless set explicitly.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.ProfileDir) == "" {
		issues = append(issues, "profile_dir is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level %q is not supported (debug, info, warn, error)", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format %q is not supported (console, json)", c.LogFormat))
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.DataFile != "" {
		switch strings.ToLower(filepath.Ext(c.DataFile)) {
		case ".csv", ".json":
		default:
			issues = append(issues, fmt.Sprintf("data_file %q must be a .csv or .json file", c.DataFile))
		}
	}
	for idx, th := range c.Thresholds {
		if strings.TrimSpace(th) == "" {
			issues = append(issues, fmt.Sprintf("thresholds[%d]: empty expression", idx))
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be between 0.0 and 1.0")
	}

	issues = append(issues, validateUsers(c.Users)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateUsers(users []UserConfig) []string {
	if len(users) == 0 {
		return nil
	}
	var issues []string
	seen := make(map[string]bool, len(users))
	totalWeight := 0
	for idx, u := range users {
		label := fmt.Sprintf("users[%d]", idx)
		name := strings.TrimSpace(u.Type)
		if name == "" {
			issues = append(issues, label+": type is required")
		} else {
			label = fmt.Sprintf("users[%s]", name)
			if seen[name] {
				issues = append(issues, label+": declared more than once")
			}
			seen[name] = true
		}
		if u.Weight < 0 {
			issues = append(issues, label+": weight must be >= 0")
		} else {
			totalWeight += u.Weight
		}
		issues = append(issues, validatePacing(label, u.Pacing)...)
	}
	if totalWeight == 0 {
		issues = append(issues, "users: at least one user type needs a positive weight")
	}
	return issues
}

func validatePacing(label string, p PacingConfig) []string {
	if p.IsZero() {
		return nil
	}
	var issues []string
	switch p.Kind {
	case PacingConstant:
		if p.Value < 0 {
			issues = append(issues, label+": pacing.value must be >= 0")
		}
	case PacingBetween:
		if p.Min < 0 || p.Max < 0 {
			issues = append(issues, label+": pacing.min and pacing.max must be >= 0")
		}
		if p.Max < p.Min {
			issues = append(issues, label+": pacing.max must be >= pacing.min")
		}
	case PacingExponential:
		if p.Mean <= 0 {
			issues = append(issues, label+": pacing.mean must be > 0")
		}
	case PacingThroughput:
		if p.Rate <= 0 {
			issues = append(issues, label+": pacing.rate must be > 0")
		}
		if p.Burst < 0 {
			issues = append(issues, label+": pacing.burst must be >= 0")
		}
	case "":
		issues = append(issues, label+": pacing.kind is required")
	default:
		issues = append(issues, fmt.Sprintf("%s: pacing kind %q is not supported", label, p.Kind))
	}
	return issues
}
