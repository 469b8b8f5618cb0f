package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/cli"
	"github.com/fraudguard-ai/fraudguard/internal/common"
	"github.com/fraudguard-ai/fraudguard/internal/engine"
	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/scoring"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <file.csv>",
		Short: "Score a batch of transactions",
		Long: `Score every transaction in a CSV file against the fraud-detection service.

Rows that fail validation are reported and skipped; the rest are scored in
batches with bounded concurrency. Identities flagged as fraud accumulate in
the durable history store, and any identity with 3 or more fraud verdicts
is marked as recurring fraud.`,
		Args: cobra.ExactArgs(1),
		RunE: runScore,
	}

	cmd.Flags().StringP("mode", "m", "fast", "scoring mode (fast, accurate)")
	cmd.Flags().String("scoring-url", "", "scoring service base URL")
	cmd.Flags().Int("batch-size", 10, "records per dispatch batch")
	cmd.Flags().Int("workers", 4, "concurrent batches in flight")
	cmd.Flags().Duration("timeout", 30*time.Second, "per-call scoring timeout")
	cmd.Flags().Bool("json", false, "emit results as JSON instead of a report")

	_ = viper.BindPFlag("scoring.mode", cmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("scoring.url", cmd.Flags().Lookup("scoring-url"))
	_ = viper.BindPFlag("scoring.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("dispatch.batch_size", cmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("dispatch.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("output.json", cmd.Flags().Lookup("json"))

	return cmd
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mode, err := model.ParseMode(viper.GetString("scoring.mode"))
	if err != nil {
		return err
	}

	scorer, err := newScoringClient()
	if err != nil {
		return err
	}
	defer scorer.Close()

	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close history store", "error", closeErr)
		}
	}()

	input, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = input.Close() }()

	jsonOutput := viper.GetBool("output.json")

	cfg := engine.DefaultConfig()
	cfg.Mode = mode
	cfg.BatchSize = viper.GetInt("dispatch.batch_size")
	cfg.Workers = viper.GetInt("dispatch.workers")
	cfg.CallTimeout = viper.GetDuration("scoring.timeout")

	var bar *progressbar.ProgressBar
	var barOnce sync.Once
	if !jsonOutput {
		slog.Info(cli.FormatTitle(fmt.Sprintf("Scoring %s", args[0])), "mode", mode)
		// The callback runs from every dispatch worker; Once publishes
		// the bar safely and Set locks internally.
		cfg.Progress = func(completed, total int) {
			barOnce.Do(func() {
				bar = newScoreProgressBar(total)
			})
			_ = bar.Set(completed)
		}
	}

	result, err := engine.NewWithConfig(store, scorer, cfg).Run(ctx, input)
	if err != nil {
		return fmt.Errorf("scoring run failed: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result.Results)
	}

	printReport(cmd, result)
	return nil
}

func newScoringClient() (*scoring.HTTPClient, error) {
	url := viper.GetString("scoring.url")
	if url == "" {
		return nil, common.NewUserError(
			"scoring service URL is required (set scoring.url or --scoring-url)",
			common.ErrMissingConfig)
	}

	return scoring.NewHTTPClient(scoring.Config{
		BaseURL:           url,
		Timeout:           viper.GetDuration("scoring.timeout"),
		RequestsPerMinute: viper.GetInt("scoring.requests_per_minute"),
	})
}

func newScoreProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Scoring transactions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func printReport(cmd *cobra.Command, result *engine.RunResult) {
	out := cmd.OutOrStdout()

	for _, r := range result.Results {
		switch r.Status {
		case model.StatusOK:
			line := fmt.Sprintf("row %3d  %-24s risk %.4f", r.RowIndex, r.Record.Identity, r.Verdict.RiskScore)
			switch {
			case r.RecurringFraud:
				fmt.Fprintln(out, cli.ErrorStyle.Render(cli.FraudIcon+" "+line+"  FRAUD (recurring)"))
			case r.Verdict.IsFraud:
				fmt.Fprintln(out, cli.WarningStyle.Render(cli.WarningIcon+" "+line+"  FRAUD"))
			default:
				fmt.Fprintln(out, cli.SubtleStyle.Render("  "+line+"  ok"))
			}
		case model.StatusParseError:
			fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("row %3d  skipped: %s", r.RowIndex, r.Error)))
		case model.StatusDispatchError:
			fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("row %3d  %-24s scoring failed: %s", r.RowIndex, r.Record.Identity, r.Error)))
		}
	}

	s := result.Summary
	summary := strings.Join([]string{
		fmt.Sprintf("Rows:            %d", s.TotalRows),
		fmt.Sprintf("Scored:          %d", s.Succeeded),
		fmt.Sprintf("Parse errors:    %d", s.ParseErrors),
		fmt.Sprintf("Dispatch errors: %d", s.DispatchErrors),
		fmt.Sprintf("Fraud verdicts:  %d", s.FraudVerdicts),
		fmt.Sprintf("Newly recurring: %d", s.NewlyRecurring),
		fmt.Sprintf("Duration:        %s", s.Duration.Round(time.Millisecond)),
	}, "\n")
	fmt.Fprintln(out, cli.RenderBox("Run summary", summary))
}
