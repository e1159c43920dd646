package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader builds a Config from a config file, the environment and parsed flags.
type Loader struct {
	// LookupEnv overrides os.LookupEnv, for tests.
	LookupEnv func(string) (string, bool)
}

// ErrNoConfigFile is returned when an explicitly requested config file cannot be read.
var ErrNoConfigFile = errors.New("config file not readable")

func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		ProfileDir: "profiles",
		LogLevel:   "info",
		LogFormat:  "console",
		TestData:   map[string]string{},
	}
}

// Load resolves the final configuration. fs is the flag set of the command being
// executed, already parsed; it may be nil.
func (l Loader) Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Defaults()

	configPath := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			configPath = strings.TrimSpace(f.Value.String())
		}
	}
	cfg.ConfigFile = configPath

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoConfigFile, configPath, err)
		}
		if err := applyConfigSettings(cfg, v.AllSettings()); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, l.LookupEnv); err != nil {
		return nil, err
	}

	if fs != nil {
		if err := applyFlagOverrides(cfg, fs); err != nil {
			return nil, err
		}
	}

	cfg.ProfileDir = strings.TrimSpace(cfg.ProfileDir)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.UserType = strings.TrimSpace(cfg.UserType)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.TestData == nil {
		cfg.TestData = map[string]string{}
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	strFields := []struct {
		name string
		keys []string
		dst  *string
	}{
		{"profile_dir", []string{"profiledir", "profile_dir", "profile-dir"}, &cfg.ProfileDir},
		{"host", []string{"host"}, &cfg.Host},
		{"user", []string{"user", "usertype", "user_type"}, &cfg.UserType},
		{"log_level", []string{"loglevel", "log_level", "log-level"}, &cfg.LogLevel},
		{"log_format", []string{"logformat", "log_format", "log-format"}, &cfg.LogFormat},
		{"data_file", []string{"datafile", "data_file", "data-file"}, &cfg.DataFile},
	}
	for _, f := range strFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.name, err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "nothink", "no_think", "no-think"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("no_think: %w", err)
		}
		cfg.NoThink = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "tasks"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("tasks: %w", err)
		}
		cfg.Tasks = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "testdata", "test_data", "test-data"); ok {
		val, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("test_data: %w", err)
		}
		for k, v := range val {
			cfg.TestData[k] = v
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	if raw, ok := lookupSetting(settings, "users"); ok {
		users, err := parseUsers(raw)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		cfg.Users = users
	}

	return nil
}

func parseUsers(value interface{}) ([]UserConfig, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	users := make([]UserConfig, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		user, err := buildUser(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func buildUser(settings map[string]interface{}) (UserConfig, error) {
	user := UserConfig{Weight: 1}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return UserConfig{}, fmt.Errorf("type: %w", err)
		}
		user.Type = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "weight"); ok {
		val, err := asInt(raw)
		if err != nil {
			return UserConfig{}, fmt.Errorf("weight: %w", err)
		}
		user.Weight = val
	}
	if raw, ok := lookupSetting(settings, "pacing", "wait_time", "wait-time"); ok {
		pacing, err := parsePacing(raw)
		if err != nil {
			return UserConfig{}, fmt.Errorf("pacing: %w", err)
		}
		user.Pacing = pacing
	}
	return user, nil
}

// parsePacing accepts either a map with a kind or a shorthand: a single number
// or duration means constant, a two-element list means between.
func parsePacing(value interface{}) (PacingConfig, error) {
	switch v := value.(type) {
	case nil:
		return PacingConfig{}, nil
	case []interface{}:
		if len(v) != 2 {
			return PacingConfig{}, fmt.Errorf("expected [min, max], got %d values", len(v))
		}
		lo, err := asDuration(v[0])
		if err != nil {
			return PacingConfig{}, fmt.Errorf("min: %w", err)
		}
		hi, err := asDuration(v[1])
		if err != nil {
			return PacingConfig{}, fmt.Errorf("max: %w", err)
		}
		return PacingConfig{Kind: PacingBetween, Min: lo, Max: hi}, nil
	case string, int, int64, float64:
		d, err := asDuration(v)
		if err != nil {
			return PacingConfig{}, err
		}
		return PacingConfig{Kind: PacingConstant, Value: d}, nil
	}

	entry, err := toStringKeyMap(value)
	if err != nil {
		return PacingConfig{}, err
	}
	var p PacingConfig
	if raw, ok := lookupSetting(entry, "kind", "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return PacingConfig{}, fmt.Errorf("kind: %w", err)
		}
		p.Kind = PacingKind(strings.ToLower(strings.TrimSpace(val)))
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"value", &p.Value},
		{"min", &p.Min},
		{"max", &p.Max},
		{"mean", &p.Mean},
	}
	for _, d := range durations {
		if raw, ok := lookupSetting(entry, d.key); ok {
			val, err := asDuration(raw)
			if err != nil {
				return PacingConfig{}, fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = val
		}
	}
	if raw, ok := lookupSetting(entry, "rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return PacingConfig{}, fmt.Errorf("rate: %w", err)
		}
		p.Rate = val
	}
	if raw, ok := lookupSetting(entry, "burst"); ok {
		val, err := asInt(raw)
		if err != nil {
			return PacingConfig{}, fmt.Errorf("burst: %w", err)
		}
		p.Burst = val
	}
	return p, nil
}

func parseTracing(value interface{}) (TracingConfig, error) {
	if value == nil {
		return TracingConfig{}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	var tc TracingConfig
	if raw, ok := lookupSetting(entry, "enable", "enabled"); ok {
		if tc.Enable, err = asBool(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("enable: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		if tc.Endpoint, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		if tc.Protocol, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		if tc.ServiceName, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		if tc.SampleRate, err = asFloat64(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		if tc.Insecure, err = asBool(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return tc, nil
}
