package main

import (
	"context"
	"fmt"

	"signal_bot/internal/executor"
	"signal_bot/internal/gate"
	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	summaryDate  string
	summaryWrite bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Build the daily summary from the execution and gate logs",
	Long: `Counts signals seen, executions and skips for a UTC date and lists
violations of the once-per-day rule.

Examples:
  autoctl summary
  autoctl summary --date 2025-01-06 --write`,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryDate, "date", "", "UTC date YYYY-MM-DD (default: today)")
	summaryCmd.Flags().BoolVar(&summaryWrite, "write", false, "Append the summary to the summary log")
}

func runSummary(cmd *cobra.Command, args []string) error {
	var (
		g   *gate.Gate
		log *executor.SummaryLog
	)
	app := storageApp(fx.Populate(&g, &log))

	return withApp(cmd.Context(), app, func(context.Context) error {
		date := summaryDate
		if date == "" {
			date = g.Today()
		}

		var (
			s   models.DailySummary
			err error
		)
		if summaryWrite {
			s, err = executor.WriteSummary(g, log, date)
		} else {
			s, err = executor.Summarize(g, date, g.Now())
		}
		if err != nil {
			return err
		}

		b, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	})
}
