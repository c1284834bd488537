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
	crossStrengthStep  = 25.0
	driftStrengthStep  = 2.0
	closedStrengthStep = 5.0

	bullFlipLevel  = 70.0
	bullEntryLevel = 75.0
	bearFlipLevel  = 30.0
	bearEntryLevel = 25.0

	maxConfidence = 0.95
)

// EngineConfig — окно данных, на котором считаются SMA.
type EngineConfig struct {
	LookbackDays int
	Interval     string
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{LookbackDays: 30, Interval: "30minute"}
}

// Engine — SMA-кроссовер с накоплением силы сигнала и самоподстройкой уверенности.
type Engine struct {
	cfg   EngineConfig
	data  MarketData
	clock MarketClock
	state *State
	rnd   Rand
	now   func() time.Time
}

func NewEngine(cfg EngineConfig, data MarketData, clock MarketClock, state *State, rnd Rand) *Engine {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	if cfg.Interval == "" {
		cfg.Interval = "30minute"
	}
	return &Engine{
		cfg:   cfg,
		data:  data,
		clock: clock,
		state: state,
		rnd:   rnd,
		now:   time.Now,
	}
}

func (e *Engine) State() *State { return e.state }

// Recommend никогда не возвращает ошибку: любой сбой превращается в HOLD с текстом ошибки.
func (e *Engine) Recommend(ctx context.Context, symbol string, params models.StrategyParams) (rec models.Recommendation) {
	ctx, finish := tracing.StartSpan(ctx, "strategy.recommend", map[string]any{"symbol": symbol})
	defer finish()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("[STRAT] %s recommend panic: %v", symbol, p)
			rec = e.failed(symbol, fmt.Errorf("%v", p))
		}
	}()

	now := e.now()
	from := now.Add(-time.Duration(e.cfg.LookbackDays) * 24 * time.Hour)
	candles, err := e.data.HistoricalData(ctx, symbol, e.cfg.Interval, from, now)
	if err != nil {
		logger.Error("[STRAT] %s historical data: %v", symbol, err)
		return e.failed(symbol, err)
	}

	rec, err = e.evaluate(symbol, candles, params, now)
	if err != nil {
		logger.Error("[STRAT] %s evaluate: %v", symbol, err)
		return e.failed(symbol, err)
	}
	return rec
}

func (e *Engine) failed(symbol string, err error) models.Recommendation {
	return models.Recommendation{
		Symbol:         symbol,
		Action:         models.ActionHold,
		Confidence:     0,
		Time:           e.now(),
		Price:          0,
		Message:        fmt.Sprintf("Error generating recommendation: %v", err),
		SignalStrength: e.state.Positions.SignalStrength(symbol),
	}
}

func (e *Engine) jitter(base, spread float64) float64 {
	return base + e.rnd.Float64()*spread
}

// evaluate — шаги 1-10 на уже загруженных свечах.
func (e *Engine) evaluate(symbol string, candles []models.Candle, params models.StrategyParams, now time.Time) (models.Recommendation, error) {
	if len(candles) < 2 {
		return models.Recommendation{}, fmt.Errorf("not enough candles for %s: %d", symbol, len(candles))
	}

	// на короткой истории SMA дополнена нулями — возможен ложный кросс против нулевой базы
	short := SMA(candles, params.ShortPeriod)
	long := SMA(candles, params.LongPeriod)

	last := len(candles) - 1
	latestShort, prevShort := short[last], short[last-1]
	latestLong, prevLong := long[last], long[last-1]
	price := candles[last].Close

	pt := e.state.Positions
	stance := pt.Position(symbol)
	strength := pt.SignalStrength(symbol)

	rec := models.Recommendation{
		Symbol: symbol,
		Time:   now,
		Price:  price,
	}

	if !e.clock.IsOpen(symbol, now) {
		switch {
		case latestShort > latestLong:
			strength = math.Min(100, strength+closedStrengthStep)
		case latestShort < latestLong:
			strength = math.Max(0, strength-closedStrengthStep)
		}
		pt.UpdateSignalStrength(symbol, strength)

		rec.Action = models.ActionHold
		rec.Confidence = 0.9
		rec.SignalStrength = strength
		rec.Message = fmt.Sprintf("Market is closed. Holding position. Signal strength %.0f", strength)
		return rec, nil
	}

	goldenCross := prevShort <= prevLong && latestShort > latestLong
	deathCross := prevShort >= prevLong && latestShort < latestLong

	switch {
	case goldenCross:
		strength = math.Min(100, strength+crossStrengthStep)
		if stance != models.SideBuy {
			e.enter(symbol, models.SideBuy, stance, price, strength)
			rec.Action = models.ActionBuy
			rec.Confidence = e.jitter(0.80, 0.15)
			rec.Message = fmt.Sprintf("Golden Cross: SMA%d (%.2f) crossed above SMA%d (%.2f)",
				params.ShortPeriod, latestShort, params.LongPeriod, latestLong)
		} else {
			rec.Action = models.ActionHold
			rec.Confidence = e.jitter(0.75, 0.15)
			rec.Message = "Golden Cross confirms existing BUY position. Holding."
		}

	case deathCross:
		strength = math.Max(0, strength-crossStrengthStep)
		if stance != models.SideSell {
			e.enter(symbol, models.SideSell, stance, price, strength)
			rec.Action = models.ActionSell
			rec.Confidence = e.jitter(0.80, 0.15)
			rec.Message = fmt.Sprintf("Death Cross: SMA%d (%.2f) crossed below SMA%d (%.2f)",
				params.ShortPeriod, latestShort, params.LongPeriod, latestLong)
		} else {
			rec.Action = models.ActionHold
			rec.Confidence = e.jitter(0.70, 0.15)
			rec.Message = "Death Cross confirms existing SELL position. Holding."
		}

	case latestShort > latestLong:
		strength = math.Min(100, strength+driftStrengthStep)
		rise := strength - pt.Checkpoint(symbol)
		switch {
		case stance == models.SideSell && strength >= bullFlipLevel && rise >= SignalChangeThreshold:
			e.enter(symbol, models.SideBuy, stance, price, strength)
			rec.Action = models.ActionBuy
			rec.Confidence = e.jitter(0.70, 0.10)
			rec.Message = fmt.Sprintf("Bullish momentum reversed SELL position (strength %.0f, +%.0f)", strength, rise)
		case stance != models.SideBuy && strength >= bullEntryLevel:
			e.enter(symbol, models.SideBuy, stance, price, strength)
			rec.Action = models.ActionBuy
			rec.Confidence = e.jitter(0.70, 0.10)
			rec.Message = fmt.Sprintf("Sustained bullish trend, entering BUY (strength %.0f)", strength)
		default:
			rec.Action = models.ActionHold
			rec.Confidence = 0.6
			rec.Message = fmt.Sprintf("Bullish trend, no new signal (strength %.0f)", strength)
		}

	case latestShort < latestLong:
		strength = math.Max(0, strength-driftStrengthStep)
		drop := pt.Checkpoint(symbol) - strength
		switch {
		case stance == models.SideBuy && strength <= bearFlipLevel && drop >= SignalChangeThreshold:
			e.enter(symbol, models.SideSell, stance, price, strength)
			rec.Action = models.ActionSell
			rec.Confidence = e.jitter(0.70, 0.10)
			rec.Message = fmt.Sprintf("Bearish momentum reversed BUY position (strength %.0f, -%.0f)", strength, drop)
		case stance != models.SideSell && strength <= bearEntryLevel:
			e.enter(symbol, models.SideSell, stance, price, strength)
			rec.Action = models.ActionSell
			rec.Confidence = e.jitter(0.70, 0.10)
			rec.Message = fmt.Sprintf("Sustained bearish trend, entering SELL (strength %.0f)", strength)
		default:
			rec.Action = models.ActionHold
			rec.Confidence = 0.6
			rec.Message = fmt.Sprintf("Bearish trend, no new signal (strength %.0f)", strength)
		}

	default:
		rec.Action = models.ActionHold
		rec.Confidence = 0.5
		rec.Message = "SMAs are equal, no clear trend"
	}

	pt.UpdateSignalStrength(symbol, strength)
	rec.SignalStrength = strength

	rec.Confidence = math.Min(maxConfidence, rec.Confidence*params.ConfidenceMultiplier)

	if perf, ok := e.state.Ledger.SymbolPerformance(symbol); ok {
		rec.Message += fmt.Sprintf(" | Past performance: %.1f%% success over %d trades, P/L %.2f",
			perf.SuccessRate*100, perf.TotalTrades, perf.ProfitLossTotal)
	}

	e.state.Ledger.RecordPrediction(symbol, models.PredictionRecord{
		Time:           now,
		Action:         rec.Action,
		Confidence:     rec.Confidence,
		Price:          price,
		SignalStrength: strength,
	})

	logger.Info("[STRAT] %s %s conf=%.2f strength=%.0f price=%.4f", symbol, rec.Action, rec.Confidence, strength, price)
	return rec, nil
}

// enter переводит позицию в side. Встречную позицию сперва закрываем с записью исхода.
func (e *Engine) enter(symbol string, side, prev models.Side, price, strength float64) {
	if prev != models.SideNone && prev != side {
		CloseOutcome(e.state, symbol, prev, price)
	}
	e.state.Positions.UpdatePosition(symbol, side, &price)
	e.state.Positions.MarkCheckpoint(symbol, strength)
}

// CloseOutcome пишет в журнал исход закрываемой позиции side по цене price.
// BUY успешен, если цена выросла; SELL — если упала.
func CloseOutcome(st *State, symbol string, side models.Side, price float64) bool {
	entry, ok := st.Positions.EntryPrice(symbol)
	if !ok {
		logger.Warn("[STRAT] %s closing %s without entry price, outcome skipped", symbol, side)
		return false
	}
	var action models.Action
	var successful bool
	switch side {
	case models.SideBuy:
		action, successful = models.ActionBuy, price > entry
	case models.SideSell:
		action, successful = models.ActionSell, price < entry
	default:
		return false
	}
	return st.Ledger.RecordOutcome(symbol, action, entry, price, successful)
}
