package notify

import (
	"context"
	"trade_desk/internal/modules/config"
	"trade_desk/internal/strategy"
	"trade_desk/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			func(cfg *config.Config) *Journal { return NewJournal(cfg.Journal.Capacity) },
			func(j *Journal) Sink { return j },
			NewLogStream,
		),
		fx.Invoke(runTelegram),
	)
}

// runTelegram поднимает форвардер, только если задан токен.
func runTelegram(lc fx.Lifecycle, cfg *config.Config, j *Journal, state *strategy.State) error {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("[TG] forwarder disabled")
		return nil
	}
	tg, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, ParseSeverity(cfg.Telegram.MinSeverity), state.Positions.Snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			entries, unsubscribe := j.Subscribe(256)
			go func() {
				defer unsubscribe()
				tg.Run(ctx, entries)
			}()
			tg.Send("🚀 trade_desk запущен")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return nil
}
