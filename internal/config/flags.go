package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers the flags shared by every crankstep command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("profile-dir", "profiles", "Directory holding profile documents")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.Bool("json-output", false, "Emit JSON formatted output")
}

// RegisterTryFlags registers the flags of the try command.
func RegisterTryFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("host", "", "Profile name used to resolve hosts")
	flags.StringP("user", "u", "", "User type to instantiate")
	flags.StringSlice("task", nil, "Task to run (repeatable, default all)")
	flags.Bool("no-think", false, "Disable pacing between steps")
	flags.StringToString("data", nil, "Test data key=value pairs (override --data-file)")
	flags.String("data-file", "", "CSV or JSON file whose first record is used as test data")
	flags.StringSlice("prompt", nil, "Test data key read from the terminal without echo (repeatable, e.g. password)")
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g. 'step_duration:p99 < 500')")
	flags.Duration("timeout", 0, "Overall deadline for the run")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and the environment. Flags the command did not
// register are skipped.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if changed(fs, "profile-dir") {
		val, err := fs.GetString("profile-dir")
		if err != nil {
			return err
		}
		cfg.ProfileDir = strings.TrimSpace(val)
	}
	if changed(fs, "log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}
	if changed(fs, "log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = val
	}
	if changed(fs, "json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if changed(fs, "host") {
		val, err := fs.GetString("host")
		if err != nil {
			return err
		}
		cfg.Host = strings.TrimSpace(val)
	}
	if changed(fs, "user") {
		val, err := fs.GetString("user")
		if err != nil {
			return err
		}
		cfg.UserType = strings.TrimSpace(val)
	}
	if changed(fs, "task") {
		val, err := fs.GetStringSlice("task")
		if err != nil {
			return err
		}
		cfg.Tasks = val
	}
	if changed(fs, "no-think") {
		val, err := fs.GetBool("no-think")
		if err != nil {
			return err
		}
		cfg.NoThink = val
	}
	if changed(fs, "data") {
		val, err := fs.GetStringToString("data")
		if err != nil {
			return err
		}
		if cfg.TestData == nil {
			cfg.TestData = map[string]string{}
		}
		for k, v := range val {
			cfg.TestData[k] = v
		}
	}
	if changed(fs, "data-file") {
		val, err := fs.GetString("data-file")
		if err != nil {
			return err
		}
		cfg.DataFile = strings.TrimSpace(val)
	}
	if changed(fs, "prompt") {
		val, err := fs.GetStringSlice("prompt")
		if err != nil {
			return err
		}
		cfg.Prompt = val
	}
	if changed(fs, "threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if changed(fs, "timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	return nil
}

func changed(fs *pflag.FlagSet, name string) bool {
	return fs.Lookup(name) != nil && fs.Changed(name)
}
