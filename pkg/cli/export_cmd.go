package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(client func() *Client) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "export [type]",
		Short: "Run an export of all asset types, or a single type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/export/run"
			if len(args) == 1 {
				path = "/export/run/" + args[0]
			}
			if force {
				path += "?forceRefresh=true"
			}

			var resp map[string]interface{}
			if err := client().Post(path, nil, &resp); err != nil {
				return err
			}
			fmt.Printf("export started, session %v\n", resp["sessionId"])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-export assets even when unchanged")
	return cmd
}

func newSessionsCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect export sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all export sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp map[string]interface{}
			if err := client().Get("/export/sessions", &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "current",
		Short: "Show the active export session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp map[string]interface{}
			if err := client().Get("/export/sessions/current", &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <session-id>",
		Short: "Show one export session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]interface{}
			if err := client().Get("/export/sessions/"+args[0], &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active export session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client().Post("/export/sessions/current/cancel", nil, nil); err != nil {
				return err
			}
			fmt.Println("session cancelled")
			return nil
		},
	})

	return cmd
}
