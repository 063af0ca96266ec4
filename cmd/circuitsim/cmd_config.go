package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/comalice/circuitx"
)

// loadConfig loads the --config file (if any), applies environment and flag
// overrides and validates the result.
func loadConfig(cmd *cobra.Command) (*circuitx.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := circuitx.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a run would use: defaults, then the --config
file, then CIRCUITX_* environment variables, as YAML.

Examples:
  circuitsim config                      # Show the defaults
  circuitsim config --config sim.yaml    # Show a file merged over the defaults
  circuitsim config --validate=false     # Print even if invalid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := circuitx.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if validate, _ := cmd.Flags().GetBool("validate"); validate {
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
			}

			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().Bool("validate", true, "Fail on an invalid configuration")
	return cmd
}
