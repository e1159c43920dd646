package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/torosent/crankstep/internal/config"
	"github.com/torosent/crankstep/internal/exampleapp"
	"github.com/torosent/crankstep/internal/vuser"
)

func main() {
	reg := vuser.NewRegistry()
	if err := exampleapp.Register(reg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := newRootCmd(reg, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(reg *vuser.Registry, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "crankstep",
		Short:         "Step-structured virtual users for load tests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.RegisterFlags(root)

	root.AddCommand(
		newTryCmd(reg),
		newProfileCmd(),
		newScenarioCmd(reg),
	)
	return root
}

// loadConfig resolves and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewLoader().Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
