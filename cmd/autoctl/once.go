package main

import (
	"context"
	"fmt"

	"signal_bot/internal/executor"
	executormod "signal_bot/internal/modules/executor"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single AUTO cycle and print its result",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	var exec *executor.Executor
	app := pipelineApp(
		fx.Decorate(oneShot),
		fx.Provide(executormod.NewSummaryLog, executormod.NewExecutor),
		fx.Populate(&exec),
	)

	return withApp(cmd.Context(), app, func(ctx context.Context) error {
		res, err := exec.RunCycle(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), res)
		return err
	})
}
