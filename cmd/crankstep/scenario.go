package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/torosent/crankstep/internal/exampleapp"
	"github.com/torosent/crankstep/internal/pacing"
	"github.com/torosent/crankstep/internal/scenario"
	"github.com/torosent/crankstep/internal/vuser"
)

func newScenarioCmd(reg *vuser.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Inspect the user mix",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the scenario from the config file, or the built-in example",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sc := exampleapp.DefaultScenario()
			if len(cfg.Users) > 0 {
				sc, err = scenario.FromConfig(cfg.Users)
				if err != nil {
					return err
				}
			}
			sc, err = withTypePacing(reg, sc)
			if err != nil {
				return err
			}
			asYAML, err := cmd.Flags().GetBool("yaml")
			if err != nil {
				return err
			}
			return printScenario(cmd, sc, cfg.JSONOutput, asYAML)
		},
	}
	show.Flags().Bool("yaml", false, "Emit YAML")
	cmd.AddCommand(show)
	return cmd
}

// withTypePacing fills entries without pacing from their registered type.
func withTypePacing(reg *vuser.Registry, sc *scenario.Scenario) (*scenario.Scenario, error) {
	entries := sc.Entries()
	for i, e := range entries {
		typ, ok := reg.Lookup(e.Type)
		if !ok {
			return nil, fmt.Errorf("scenario names unknown user type %q", e.Type)
		}
		if e.Pacing == nil {
			entries[i].Pacing = typ.Pacing
		}
	}
	return scenario.New(entries...)
}

type scenarioEntryDoc struct {
	Type   string  `json:"type" yaml:"type"`
	Weight int     `json:"weight" yaml:"weight"`
	Share  float64 `json:"share" yaml:"share"`
	Pacing string  `json:"pacing" yaml:"pacing"`
}

func printScenario(cmd *cobra.Command, sc *scenario.Scenario, asJSON, asYAML bool) error {
	out := cmd.OutOrStdout()
	if !asJSON && !asYAML {
		_, err := fmt.Fprint(out, sc.String())
		return err
	}

	mix := sc.Mix()
	docs := make([]scenarioEntryDoc, 0, len(sc.Entries()))
	for _, e := range sc.Entries() {
		docs = append(docs, scenarioEntryDoc{
			Type:   e.Type,
			Weight: e.Weight,
			Share:  mix[e.Type],
			Pacing: pacing.Describe(e.Pacing),
		})
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"users": docs})
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"users": docs}); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	return enc.Close()
}
