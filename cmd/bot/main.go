package main

import (
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/executor"
	"signal_bot/internal/modules/feed"
	httpmodule "signal_bot/internal/modules/http"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/signal"
	"signal_bot/internal/modules/source"
	"signal_bot/internal/modules/storage"
	telegram "signal_bot/internal/modules/telegram_bot"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module(),
		feed.Module(),
		postgres.Module(),
		storage.Module(),
		source.Module(),
		telegram.Module(),
		signal.Module(),
		executor.Module(),
		httpmodule.Module(),
	)
	app.Run()
}
