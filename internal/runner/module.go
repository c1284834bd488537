package runner

import (
	"context"
	"trade_desk/internal/exchange"
	"trade_desk/internal/market"
	"trade_desk/internal/modules/api/service"
	"trade_desk/internal/modules/config"
	"trade_desk/internal/notify"
	"trade_desk/internal/strategy"

	"go.uber.org/fx"
)

func newExecutor(cfg *config.Config, engine *strategy.Engine, optimizer *strategy.Optimizer, orders exchange.OrderGateway,
	hours *market.Hours, state *strategy.State, sink notify.Sink) *Executor {
	return NewExecutor(ExecutorConfig{
		CryptoThreshold:  cfg.Executor.CryptoThreshold,
		DefaultThreshold: cfg.Executor.DefaultThreshold,
		DefaultQuantity:  cfg.Executor.DefaultQuantity,
	}, engine, optimizer, orders, hours, state, sink)
}

func newScheduler(cfg *config.Config, exec *Executor, sink notify.Sink, state *service.State) (*Scheduler, error) {
	s, err := NewScheduler(cfg.AutoTrade.Spec, cfg.AutoTrade.Symbols, exec, sink)
	if err != nil {
		return nil, err
	}
	s.SetRunRecorder(state)
	s.enabled.Store(cfg.AutoTrade.Enabled)
	return s, nil
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newExecutor,  // *Executor
			newScheduler, // *Scheduler
		),
		fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					s.Start()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					s.Stop(ctx)
					return nil
				},
			})
		}),
	)
}
