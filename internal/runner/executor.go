package runner

import (
	"context"
	"fmt"
	"time"
	"trade_desk/internal/exchange"
	"trade_desk/internal/models"
	"trade_desk/internal/notify"
	"trade_desk/internal/strategy"
	"trade_desk/pkg/logger"
	"trade_desk/pkg/tracing"
)

type Recommender interface {
	Recommend(ctx context.Context, symbol string, params models.StrategyParams) models.Recommendation
}

type ParamsOptimizer interface {
	Optimize(ctx context.Context, symbol string) models.StrategyParams
}

// MarketHours — *market.Hours.
type MarketHours interface {
	IsOpen(symbol string, now time.Time) bool
	IsCrypto(symbol string) bool
}

type ExecutorConfig struct {
	CryptoThreshold  float64
	DefaultThreshold float64
	DefaultQuantity  float64
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{CryptoThreshold: 0.6, DefaultThreshold: 0.7, DefaultQuantity: 1}
}

// TradeResult — итог одного автопрогона по символу.
type TradeResult struct {
	Symbol         string                `json:"symbol"`
	Params         models.StrategyParams `json:"params"`
	Recommendation models.Recommendation `json:"recommendation"`
	Order          *models.OrderRecord   `json:"order,omitempty"`
	Outcome        string                `json:"outcome"`
}

const (
	OutcomeHold           = "hold"
	OutcomeMarketClosed   = "market_closed"
	OutcomePlaced         = "placed"
	OutcomeOrderFailed    = "order_failed"
	OutcomeManualApproval = "manual_approval"
)

// Executor превращает рекомендации в ордера и держит трекер позиций в согласии с ними.
type Executor struct {
	cfg       ExecutorConfig
	engine    Recommender
	optimizer ParamsOptimizer
	orders    exchange.OrderGateway
	hours     MarketHours
	state     *strategy.State
	sink      notify.Sink
	now       func() time.Time
}

func NewExecutor(cfg ExecutorConfig, engine Recommender, optimizer ParamsOptimizer, orders exchange.OrderGateway,
	hours MarketHours, state *strategy.State, sink notify.Sink) *Executor {
	if cfg.DefaultQuantity <= 0 {
		cfg.DefaultQuantity = 1
	}
	return &Executor{
		cfg:       cfg,
		engine:    engine,
		optimizer: optimizer,
		orders:    orders,
		hours:     hours,
		state:     state,
		sink:      sink,
		now:       time.Now,
	}
}

func (e *Executor) threshold(symbol string) float64 {
	if e.hours.IsCrypto(symbol) {
		return e.cfg.CryptoThreshold
	}
	return e.cfg.DefaultThreshold
}

// AutoTrade: оптимизация -> рекомендация -> ордер, если уверенность не ниже порога.
// Ошибки наружу не идут: всё уходит в журнал и в TradeResult.Outcome.
func (e *Executor) AutoTrade(ctx context.Context, symbol string) TradeResult {
	ctx, finish := tracing.StartSpan(ctx, "runner.auto_trade", map[string]any{"symbol": symbol})
	defer finish()

	params := e.optimizer.Optimize(ctx, symbol)
	rec := e.engine.Recommend(ctx, symbol, params)
	res := TradeResult{Symbol: symbol, Params: params, Recommendation: rec}

	if rec.Action == models.ActionHold {
		res.Outcome = OutcomeHold
		e.sink.AddLog(fmt.Sprintf("%s: HOLD (%s)", symbol, rec.Message), models.SeverityInfo)
		return res
	}

	if !e.hours.IsOpen(symbol, e.now()) {
		res.Outcome = OutcomeMarketClosed
		e.sink.AddLog(fmt.Sprintf("Market is closed. Cannot place %s order for %s", rec.Action, symbol), models.SeverityWarning)
		return res
	}

	threshold := e.threshold(symbol)
	if rec.Confidence < threshold {
		res.Outcome = OutcomeManualApproval
		e.sink.AddLog(fmt.Sprintf("%s %s signal with %.0f%% confidence (below %.0f%%), manual approval required",
			symbol, rec.Action, rec.Confidence*100, threshold*100), models.SeverityInfo)
		return res
	}

	order, err := e.orders.PlaceOrder(ctx, models.OrderRequest{
		Symbol:   symbol,
		Side:     rec.Action.Side(),
		Quantity: e.cfg.DefaultQuantity,
		Kind:     models.OrderMarket,
	})
	if err != nil {
		res.Outcome = OutcomeOrderFailed
		logger.Error("[RUNNER] auto %s %s: %v", rec.Action, symbol, err)
		e.sink.AddLog(fmt.Sprintf("Auto-trade %s order for %s failed: %v", rec.Action, symbol, err), models.SeverityError)
		return res
	}

	res.Outcome = OutcomePlaced
	res.Order = &order
	e.sink.AddLog(fmt.Sprintf("Auto-trade: %s %.4g %s @ %.2f (confidence %.0f%%, order %s)",
		rec.Action, order.Quantity, symbol, order.Price, rec.Confidence*100, order.ID), models.SeveritySuccess)
	return res
}

// ManualTrade — ордер с дашборда. Трекер обновляется сразу после исполнения.
func (e *Executor) ManualTrade(ctx context.Context, req models.OrderRequest) (models.OrderRecord, error) {
	if req.Quantity <= 0 {
		req.Quantity = e.cfg.DefaultQuantity
	}
	if req.Kind == "" {
		req.Kind = models.OrderMarket
	}

	order, err := e.orders.PlaceOrder(ctx, req)
	if err != nil {
		e.sink.AddLog(fmt.Sprintf("Manual %s order for %s failed: %v", req.Side, req.Symbol, err), models.SeverityError)
		return models.OrderRecord{}, fmt.Errorf("place %s %s: %w", req.Side, req.Symbol, err)
	}

	pt := e.state.Positions
	prev := pt.Position(req.Symbol)
	switch {
	case prev == req.Side:
		// докупка в ту же сторону, цену входа не трогаем
	case prev != models.SideNone:
		e.closeOutcome(req.Symbol, prev, order.Price)
		fallthrough
	default:
		price := order.Price
		pt.UpdatePosition(req.Symbol, req.Side, &price)
		pt.MarkCheckpoint(req.Symbol, pt.SignalStrength(req.Symbol))
	}

	e.sink.AddLog(fmt.Sprintf("Manual %s %.4g %s @ %.2f (order %s)",
		req.Side, order.Quantity, req.Symbol, order.Price, order.ID), models.SeveritySuccess)
	return order, nil
}

// ClosePosition закрывает позицию движка встречным рыночным ордером.
func (e *Executor) ClosePosition(ctx context.Context, symbol string, qty float64) (models.OrderRecord, error) {
	pt := e.state.Positions
	stance := pt.Position(symbol)
	if stance == models.SideNone {
		return models.OrderRecord{}, fmt.Errorf("no open position for %s", symbol)
	}
	if qty <= 0 {
		qty = e.cfg.DefaultQuantity
	}

	order, err := e.orders.PlaceOrder(ctx, models.OrderRequest{
		Symbol:   symbol,
		Side:     stance.Opposite(),
		Quantity: qty,
		Kind:     models.OrderMarket,
	})
	if err != nil {
		e.sink.AddLog(fmt.Sprintf("Closing %s position on %s failed: %v", stance, symbol, err), models.SeverityError)
		return models.OrderRecord{}, fmt.Errorf("close %s %s: %w", stance, symbol, err)
	}

	e.closeOutcome(symbol, stance, order.Price)
	pt.ClearPosition(symbol)
	pt.MarkCheckpoint(symbol, pt.SignalStrength(symbol))

	e.sink.AddLog(fmt.Sprintf("Closed %s position on %s @ %.2f (order %s)", stance, symbol, order.Price, order.ID), models.SeveritySuccess)
	return order, nil
}

// closeOutcome: успешность по знаку P/L.
func (e *Executor) closeOutcome(symbol string, side models.Side, price float64) {
	entry, ok := e.state.Positions.EntryPrice(symbol)
	if !ok {
		logger.Warn("[RUNNER] %s closing %s without entry price, outcome skipped", symbol, side)
		return
	}
	pl := price - entry
	action := models.ActionBuy
	if side == models.SideSell {
		pl = entry - price
		action = models.ActionSell
	}
	if e.state.Ledger.RecordOutcome(symbol, action, entry, price, pl > 0) {
		logger.Info("[RUNNER] %s %s outcome recorded, P/L %.2f", symbol, side, pl)
	}
}
