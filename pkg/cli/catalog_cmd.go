package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect or rebuild the asset index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the asset index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp map[string]interface{}
			if err := client().Get("/index", &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the asset index from persisted blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp map[string]interface{}
			if err := client().Post("/index/rebuild", nil, &resp); err != nil {
				return err
			}
			fmt.Println("index rebuilt")
			return nil
		},
	})

	return cmd
}

func newCatalogCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or rebuild the data catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the data catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp map[string]interface{}
			if err := client().Get("/catalog", &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the data catalog from the asset universe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp map[string]interface{}
			if err := client().Post("/catalog/rebuild", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("catalog rebuilt: %v fields, %v calculated\n",
				resp["totalFields"], resp["totalCalculated"])
			return nil
		},
	})

	return cmd
}

func newLineageCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage [asset-id]",
		Short: "Show lineage for one asset, or all assets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/lineage"
			if len(args) == 1 {
				path = "/lineage/" + args[0]
			}
			var resp map[string]interface{}
			if err := client().Get(path, &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}
