package strategy

import (
	"trade_desk/internal/exchange"
	"trade_desk/internal/market"
	"trade_desk/internal/modules/config"
	"trade_desk/internal/strategy"
	"trade_desk/pkg/logger"

	"go.uber.org/fx"
)

func NewHours(cfg *config.Config) (*market.Hours, error) {
	return market.NewHours(cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close, cfg.Strategy.CryptoSuffixes)
}

func NewEngine(cfg *config.Config, data strategy.MarketData, clock strategy.MarketClock, state *strategy.State) *strategy.Engine {
	return strategy.NewEngine(strategy.EngineConfig{
		LookbackDays: cfg.Strategy.LookbackDays,
		Interval:     cfg.Strategy.Interval,
	}, data, clock, state, strategy.NewRand(cfg.Strategy.Seed))
}

func NewOptimizer(cfg *config.Config, data strategy.MarketData, state *strategy.State) *strategy.Optimizer {
	return strategy.NewOptimizer(strategy.OptimizerConfig{
		Days:     cfg.Strategy.OptimizerDays,
		Interval: cfg.Strategy.OptimizerInterval,
	}, data, state.Ledger)
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			NewHours, // *market.Hours
			func(h *market.Hours) strategy.MarketClock { return h },
			func(md exchange.MarketData) strategy.MarketData { return md },
			strategy.NewState, // общее состояние движка на процесс
			NewEngine,
			NewOptimizer,
		),
		fx.Invoke(func(cfg *config.Config) {
			logger.Info("[STRAT] window %dd/%s, optimizer %dd/%s",
				cfg.Strategy.LookbackDays, cfg.Strategy.Interval,
				cfg.Strategy.OptimizerDays, cfg.Strategy.OptimizerInterval)
		}),
	)
}
