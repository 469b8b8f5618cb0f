package main

import (
	"fmt"

	"github.com/fraudguard-ai/fraudguard/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func pingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check the scoring service's health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url, _ := cmd.Flags().GetString("scoring-url"); url != "" {
				viper.Set("scoring.url", url)
			}

			client, err := newScoringClient()
			if err != nil {
				return err
			}
			defer client.Close()

			status, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("scoring service health check failed: %w", err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("scoring service status: %s", status.Status)))
			cmd.Println(cli.InfoStyle.Render(fmt.Sprintf("  fast model loaded:     %v", status.FastModelLoaded)))
			cmd.Println(cli.InfoStyle.Render(fmt.Sprintf("  accurate model loaded: %v", status.AccurateModelLoaded)))
			return nil
		},
	}

	cmd.Flags().String("scoring-url", "", "scoring service base URL")
	return cmd
}
