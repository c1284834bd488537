package main

import (
	"log"
	"trade_desk/internal/modules/api"
	"trade_desk/internal/modules/broker"
	"trade_desk/internal/modules/config"
	"trade_desk/internal/modules/strategy"
	"trade_desk/internal/modules/tracing"
	"trade_desk/internal/notify"
	"trade_desk/internal/runner"
	"trade_desk/pkg/logger"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module(),
		tracing.Module(),
		broker.Module(),
		strategy.Module(),
		notify.Module(),
		runner.Module(),
		api.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// Run блокируется до SIGINT/SIGTERM и сам гасит lifecycle
	app.Run()
}
