package strategy

import (
	"context"
	"fmt"
	"math"
	"time"
	"trade_desk/internal/models"
	"trade_desk/pkg/logger"
	"trade_desk/pkg/tracing"
)

const (
	highVolatility = 0.025
	lowVolatility  = 0.01
)

type OptimizerConfig struct {
	Days     int
	Interval string
}

func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{Days: 5, Interval: "15minute"}
}

// Optimizer подбирает периоды SMA по недавней волатильности.
type Optimizer struct {
	cfg    OptimizerConfig
	data   MarketData
	ledger *PerformanceLedger
	now    func() time.Time
}

func NewOptimizer(cfg OptimizerConfig, data MarketData, ledger *PerformanceLedger) *Optimizer {
	if cfg.Days <= 0 {
		cfg.Days = 5
	}
	if cfg.Interval == "" {
		cfg.Interval = "15minute"
	}
	return &Optimizer{cfg: cfg, data: data, ledger: ledger, now: time.Now}
}

// Optimize при любой ошибке отдаёт дефолты (20, 50, 1.0).
func (o *Optimizer) Optimize(ctx context.Context, symbol string) (params models.StrategyParams) {
	ctx, finish := tracing.StartSpan(ctx, "strategy.optimize", map[string]any{"symbol": symbol})
	defer finish()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("[OPT] %s optimize panic: %v", symbol, p)
			params = models.DefaultStrategyParams()
		}
	}()

	now := o.now()
	from := now.Add(-time.Duration(o.cfg.Days) * 24 * time.Hour)
	candles, err := o.data.HistoricalData(ctx, symbol, o.cfg.Interval, from, now)
	if err != nil {
		logger.Error("[OPT] %s: %v", symbol, fmt.Errorf("fetch optimizer window: %w", err))
		return models.DefaultStrategyParams()
	}

	vol := Volatility(candles)
	params = ParamsForVolatility(vol)
	params.ConfidenceMultiplier *= o.ledger.AdjustmentFactor(symbol)

	logger.Info("[OPT] %s volatility=%.5f short=%d long=%d mult=%.3f",
		symbol, vol, params.ShortPeriod, params.LongPeriod, params.ConfidenceMultiplier)
	return params
}

// ParamsForVolatility — без учёта журнала.
func ParamsForVolatility(vol float64) models.StrategyParams {
	switch {
	case vol > highVolatility:
		return models.StrategyParams{ShortPeriod: 15, LongPeriod: 40, ConfidenceMultiplier: 0.9}
	case vol < lowVolatility:
		return models.StrategyParams{ShortPeriod: 25, LongPeriod: 60, ConfidenceMultiplier: 1.1}
	default:
		return models.DefaultStrategyParams()
	}
}

// Volatility — стандартное отклонение (по генеральной совокупности) относительных доходностей.
func Volatility(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}
