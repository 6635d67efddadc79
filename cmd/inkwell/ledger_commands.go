package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"inkwell/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the ingestion ledger",
	}

	ledgerCmd.AddCommand(newLedgerStatsCommand(ctx))
	ledgerCmd.AddCommand(newLedgerFailedCommand(ctx))
	ledgerCmd.AddCommand(newLedgerCleanupCommand(ctx))

	return ledgerCmd
}

func withLedger(ctx *commandContext, fn func(cmd *cobra.Command, store *ledger.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return err
		}
		store, err := ledger.Open(cfg)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer store.Close()
		return fn(cmd, store)
	}
}

func newLedgerStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ingestion statistics",
		RunE: withLedger(ctx, func(cmd *cobra.Command, store *ledger.Store) error {
			stats, err := store.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Successful", fmt.Sprintf("%d", stats.TotalSuccess)},
				{"Failed", fmt.Sprintf("%d", stats.TotalFailed)},
				{"In progress", fmt.Sprintf("%d", stats.TotalProcessing)},
				{"Processed today", fmt.Sprintf("%d", stats.ProcessedToday)},
				{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate)},
				{"Avg duration", fmt.Sprintf("%.1fs", stats.AvgDuration)},
				{"Total duration", fmt.Sprintf("%.1fs", stats.TotalDuration)},
			}
			fmt.Fprintln(out, renderTable(out, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		}),
	}
}

func newLedgerFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List items awaiting retry",
		RunE: withLedger(ctx, func(cmd *cobra.Command, store *ledger.Store) error {
			records, err := store.FailedRetry(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No items awaiting retry.")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.FileName,
					record.ProcessedAt.Local().Format(time.DateTime),
					record.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(out, []string{"File", "Last attempt", "Error"}, rows, nil))
			return nil
		}),
	}
}

func newLedgerCleanupCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old terminal ledger records",
		RunE: withLedger(ctx, func(cmd *cobra.Command, store *ledger.Store) error {
			retention := days
			if retention <= 0 {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				retention = cfg.Ledger.RetentionDays
			}
			removed, err := store.Cleanup(cmd.Context(), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records older than %d days\n", removed, retention)
			return nil
		}),
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention window in days (defaults to the configured value)")
	return cmd
}
