package config

import (
	"trade_desk/pkg/logger"

	"go.uber.org/fx"
)

// initLogger — логгер нужен всем модулям, поэтому поднимается сразу после чтения конфига.
func initLogger(cfg *Config) error {
	logger.SetServiceName(cfg.Service.Name)
	return logger.Init(cfg.Log.Level, cfg.Log.JSON)
}

func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
		fx.Invoke(initLogger),
	)
}
