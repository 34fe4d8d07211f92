package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Verify reachability, credentials and product detection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, url, err := buildClient(ctx)
		if err != nil {
			return err
		}

		info, err := c.TestConnection(ctx)
		if err != nil {
			return fmt.Errorf("connection to %s failed: %w", url, err)
		}

		fmt.Printf("Connected to %s\n", url)
		fmt.Printf("  Product:  %s\n", info.Product)
		fmt.Printf("  Version:  %s\n", info.Version)
		fmt.Printf("  Latency:  %s\n", info.ResponseTime.Round(1e6))
		return nil
	},
}
