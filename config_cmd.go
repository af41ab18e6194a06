package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/happycod3r/ytapi/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		enc := json.NewEncoder(cc.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(cc.Resolved); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	return config.RenderEffective(cc.Resolved, cc.Stdout)
}
