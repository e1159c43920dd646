package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable crankstep reads.
const EnvPrefix = "CRANKSTEP_"

// envOverrides lists the settings that may come from the environment. Empty
// values leave the current setting untouched.
type envOverrides struct {
	ProfileDir string `env:"PROFILE_DIR"`
	Host       string `env:"HOST"`
	LogLevel   string `env:"LOG_LEVEL"`
	LogFormat  string `env:"LOG_FORMAT"`
	DataFile   string `env:"DATA_FILE"`
	NoThink    *bool  `env:"NO_THINK"`
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	opts := env.Options{Prefix: EnvPrefix}
	if lookup != nil {
		opts.Environment = environment(lookup)
	}

	var o envOverrides
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.ProfileDir != "" {
		cfg.ProfileDir = o.ProfileDir
	}
	if o.Host != "" {
		cfg.Host = o.Host
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}
	if o.DataFile != "" {
		cfg.DataFile = o.DataFile
	}
	if o.NoThink != nil {
		cfg.NoThink = *o.NoThink
	}
	return nil
}

// environment materializes the variables under EnvPrefix that lookup knows about.
func environment(lookup func(string) (string, bool)) map[string]string {
	out := map[string]string{}
	for _, key := range []string{"PROFILE_DIR", "HOST", "LOG_LEVEL", "LOG_FORMAT", "DATA_FILE", "NO_THINK"} {
		if val, ok := lookup(EnvPrefix + key); ok {
			out[EnvPrefix+key] = val
		}
	}
	return out
}
