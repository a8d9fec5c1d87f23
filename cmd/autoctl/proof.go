package main

import (
	"context"
	"fmt"
	"os"

	"signal_bot/internal/dispatch"
	"signal_bot/internal/executor"
	"signal_bot/internal/gate"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/proof"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	proofOut       string
	proofHealthURL string
)

var proofCmd = &cobra.Command{
	Use:   "proof",
	Short: "Print a proof packet: health, feed, last decision, last summary, config",
	RunE:  runProof,
}

func init() {
	rootCmd.AddCommand(proofCmd)
	proofCmd.Flags().StringVar(&proofOut, "out", "", "Write YAML to file instead of stdout")
	proofCmd.Flags().StringVar(&proofHealthURL, "health-url", "", "Health endpoint (default: http://127.0.0.1:<service.port>/health)")
}

func runProof(cmd *cobra.Command, args []string) error {
	var (
		cfg   *config.Config
		g     *gate.Gate
		log   *executor.SummaryLog
		guard *dispatch.Guard
	)
	app := storageApp(fx.Populate(&cfg, &g, &log, &guard))

	return withApp(cmd.Context(), app, func(ctx context.Context) error {
		healthURL := proofHealthURL
		if healthURL == "" {
			healthURL = fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Service.Port)
		}

		p := proof.Build(ctx, proof.Inputs{
			Gate:           g,
			Summaries:      log,
			Guard:          guard,
			FeedHealthPath: cfg.Path(cfg.Storage.FeedHealth),
			HealthURL:      healthURL,
			Config: proof.ConfigView{
				APIKeySet:    cfg.Feed.APIKey != "",
				TelegramSet:  cfg.Telegram.Token != "",
				AutoEnabled:  cfg.AutoEnabled(),
				LiveMode:     cfg.Auto.LiveMode,
				Source:       cfg.Source.Kind,
				Lock:         cfg.Lock.Kind,
				PollInterval: cfg.Auto.PollInterval.String(),
				SignalTTL:    cfg.Auto.SignalTTL.String(),
			},
		})

		b, err := p.YAML()
		if err != nil {
			return err
		}
		if proofOut != "" {
			return os.WriteFile(proofOut, b, 0o644)
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	})
}
