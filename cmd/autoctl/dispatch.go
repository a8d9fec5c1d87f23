package main

import (
	"context"
	"fmt"

	"signal_bot/internal/dispatch"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Inspect or reset the dispatch guard state",
}

var dispatchStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print dispatched pairs and their last sends",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGuard(cmd, func(ctx context.Context, g *dispatch.Guard) error {
			st, err := g.Stats()
			if err != nil {
				return err
			}
			b, err := sonic.ConfigStd.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		})
	},
}

var dispatchResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget all dispatched signals (cooldowns start over)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGuard(cmd, func(ctx context.Context, g *dispatch.Guard) error {
			if err := g.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "dispatch state reset")
			return nil
		})
	},
}

func init() {
	dispatchCmd.AddCommand(dispatchStatsCmd, dispatchResetCmd)
	rootCmd.AddCommand(dispatchCmd)
}

func withGuard(cmd *cobra.Command, fn func(ctx context.Context, g *dispatch.Guard) error) error {
	var g *dispatch.Guard
	app := storageApp(fx.Populate(&g))
	return withApp(cmd.Context(), app, func(ctx context.Context) error {
		return fn(ctx, g)
	})
}
