package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ember/internal/scenario"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the runnable scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, name := range scenario.Names() {
			sc, err := scenario.Lookup(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-10s %s\n", sc.Name, sc.Summary)
		}
		return nil
	},
}
