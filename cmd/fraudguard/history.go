package main

import (
	"fmt"

	"github.com/fraudguard-ai/fraudguard/internal/cli"
	"github.com/fraudguard-ai/fraudguard/internal/common"
	"github.com/fraudguard-ai/fraudguard/internal/config"
	"github.com/fraudguard-ai/fraudguard/internal/history"
	"github.com/fraudguard-ai/fraudguard/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the durable fraud history",
	}

	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyShowCmd())

	return cmd
}

func historyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all identities with fraud history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Entries(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			if len(entries) == 0 {
				cmd.Println(cli.SubtleStyle.Render("No fraud history recorded yet."))
				return nil
			}

			for _, e := range entries {
				line := fmt.Sprintf("%-32s count %2d  last seen %s",
					e.Identity, e.FraudCount, e.LastSeen.Format("2006-01-02 15:04"))
				if e.FraudCount >= service.RecurringFraudThreshold {
					cmd.Println(cli.ErrorStyle.Render(cli.FraudIcon + " " + line + "  RECURRING"))
				} else {
					cmd.Println("  " + line)
				}
			}

			return nil
		},
	}
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <identity>",
		Short: "Show one identity's fraud count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			count, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			recurring := count >= service.RecurringFraudThreshold
			cmd.Printf("%s: %d fraud verdict(s), recurring=%v\n", args[0], count, recurring)
			return nil
		},
	}
}

// openHistoryStore builds the configured history store backend.
func openHistoryStore() (service.HistoryStore, error) {
	path := config.ExpandPath(viper.GetString("history.path"))
	backend := viper.GetString("history.backend")

	switch backend {
	case "", "json":
		if path == "" {
			path = config.DefaultHistoryPath()
		}
		return history.NewJSONStore(path)
	case "sqlite":
		if path == "" {
			path = config.DefaultHistoryPath() + ".db"
		}
		return history.NewSQLiteStore(path)
	default:
		return nil, common.NewUserError(
			fmt.Sprintf("unsupported history backend %q (want json or sqlite)", backend),
			common.ErrInvalidConfig)
	}
}
