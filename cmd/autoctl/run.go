package main

import (
	"context"
	"fmt"

	"signal_bot/internal/modules/config"
	executormod "signal_bot/internal/modules/executor"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the AUTO poll loop until interrupted",
	Long: `Polls the signal source every auto.poll_interval and executes at most
one valid signal per UTC day. On SIGINT/SIGTERM the loop stops and the
summary of the current day is appended to the summary log.`,
	RunE: runLoop,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	if !cfg.AutoEnabled() {
		fmt.Fprintln(cmd.OutOrStdout(), "AUTO disabled (AUTO_V0_ENABLED is not true), exiting")
		return nil
	}
	if err := cfg.RequireFeedKey(); err != nil {
		return err
	}

	app := pipelineApp(
		fx.Decorate(oneShot),
		executormod.Module(),
	)

	return withApp(context.Background(), app, func(context.Context) error {
		sig := <-app.Done()
		fmt.Fprintf(cmd.OutOrStdout(), "received %s, stopping\n", sig)
		return nil
	})
}
