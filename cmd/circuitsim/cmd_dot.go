package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/comalice/circuitx"
	"github.com/comalice/circuitx/internal/production"
)

func newDotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Print the instrument wiring as Graphviz DOT",
		Long: `Print which instrument reads from which, as Graphviz DOT source.

Examples:
  circuitsim dot | dot -Tsvg > wiring.svg
  circuitsim dot --sampling triggered`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sim, err := circuitx.New(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), production.ExportDOT(sim.Topology()))
			return nil
		},
	}
	addSimulationFlags(cmd)
	return cmd
}
