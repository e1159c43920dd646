package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/torosent/crankstep/internal/profile"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Resolve a profile and print its hosts and settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := profile.NewFileResolver(cfg.ProfileDir).Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printProfile(cmd, p, cfg.JSONOutput)
		},
	})
	return cmd
}

type profileDoc struct {
	Name     string            `json:"name" yaml:"name"`
	Hosts    map[string]string `json:"hosts" yaml:"hosts"`
	Settings map[string]any    `json:"settings,omitempty" yaml:"settings,omitempty"`
}

func printProfile(cmd *cobra.Command, p *profile.Profile, asJSON bool) error {
	doc := profileDoc{Name: p.Name(), Hosts: p.Hosts(), Settings: p.Settings()}
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = out.Write(data)
	return err
}
