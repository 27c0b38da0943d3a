// Package cli implements the atlasctl command-line interface for the
// bi-atlas admin API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var host string

	rootCmd := &cobra.Command{
		Use:           "atlasctl",
		Short:         "BI asset catalog admin CLI",
		Long:          "Command-line interface for the bi-atlas admin API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Precedence: flag > env > default.
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("ATLAS_HOST"); v != "" {
					host = v
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "bi-atlas server base URL")

	client := func() *Client { return NewClient(host) }
	rootCmd.AddCommand(
		newExportCmd(client),
		newSessionsCmd(client),
		newIndexCmd(client),
		newCatalogCmd(client),
		newLineageCmd(client),
	)
	return rootCmd
}
