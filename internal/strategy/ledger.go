package strategy

import (
	"sync"
	"time"
	"trade_desk/internal/models"
)

const (
	// MaxPredictionHistory — сколько последних предсказаний держим на символ.
	MaxPredictionHistory = 100

	// MinPredictionsForAdjustment — ниже этого числа фактор не пересчитывается.
	MinPredictionsForAdjustment = 5

	adjustmentKeep = 0.7
	adjustmentNew  = 0.3
)

// PerformanceLedger — журнал предсказаний и статистика попаданий по символам.
// Статистика никогда не сбрасывается.
type PerformanceLedger struct {
	mu      sync.Mutex
	history map[string][]models.PredictionRecord
	stats   map[string]*models.PerformanceStats
	now     func() time.Time
}

func NewPerformanceLedger() *PerformanceLedger {
	return &PerformanceLedger{
		history: make(map[string][]models.PredictionRecord),
		stats:   make(map[string]*models.PerformanceStats),
		now:     time.Now,
	}
}

func (l *PerformanceLedger) statsFor(symbol string) *models.PerformanceStats {
	st, ok := l.stats[symbol]
	if !ok {
		st = &models.PerformanceStats{AdjustmentFactor: 1.0}
		l.stats[symbol] = st
	}
	return st
}

// RecordPrediction добавляет запись в конец журнала, самые старые вытесняются сверх лимита.
func (l *PerformanceLedger) RecordPrediction(symbol string, rec models.PredictionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Symbol = symbol
	rec.Outcome = nil

	h := append(l.history[symbol], rec)
	if len(h) > MaxPredictionHistory {
		h = append([]models.PredictionRecord(nil), h[len(h)-MaxPredictionHistory:]...)
	}
	l.history[symbol] = h

	l.statsFor(symbol).TotalPredictions++
}

// RecordOutcome закрывает последнее открытое предсказание с тем же action.
// successful приходит от вызывающего и со знаком profitLoss не сверяется.
// Возвращает false, если закрывать нечего — тогда ничего не меняется.
func (l *PerformanceLedger) RecordOutcome(symbol string, action models.Action, entryPrice, closingPrice float64, successful bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.history[symbol]
	idx := -1
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Action == action && h[i].Outcome == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	pl := closingPrice - entryPrice
	if action == models.ActionSell {
		pl = entryPrice - closingPrice
	}
	h[idx].Outcome = &models.Outcome{
		Successful:   successful,
		ProfitLoss:   pl,
		ClosingPrice: closingPrice,
		ClosingTime:  l.now(),
	}

	st := l.statsFor(symbol)
	if successful {
		st.SuccessfulPredictions++
	} else {
		st.FailedPredictions++
	}
	st.ProfitLossTotal += pl

	l.updateAdjustmentFactor(st)
	return true
}

func (l *PerformanceLedger) updateAdjustmentFactor(st *models.PerformanceStats) {
	if st.TotalPredictions < MinPredictionsForAdjustment {
		return
	}
	completed := st.SuccessfulPredictions + st.FailedPredictions
	if completed == 0 {
		return
	}
	rate := float64(st.SuccessfulPredictions) / float64(completed)
	st.AdjustmentFactor = st.AdjustmentFactor*adjustmentKeep + rawAdjustment(rate)*adjustmentNew
}

func rawAdjustment(successRate float64) float64 {
	switch {
	case successRate >= 0.7:
		return 1.0 + (successRate - 0.7)
	case successRate >= 0.5:
		return 0.9 + (successRate - 0.5)
	default:
		return 0.7 + successRate*0.4
	}
}

// SymbolPerformance: ok == false, если по символу ещё ничего не записано.
func (l *PerformanceLedger) SymbolPerformance(symbol string) (models.SymbolPerformance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.stats[symbol]
	if !ok {
		return models.SymbolPerformance{}, false
	}
	completed := st.SuccessfulPredictions + st.FailedPredictions
	rate := 0.0
	if completed > 0 {
		rate = float64(st.SuccessfulPredictions) / float64(completed)
	}
	return models.SymbolPerformance{
		SuccessRate:      rate,
		TotalTrades:      completed,
		ProfitLossTotal:  st.ProfitLossTotal,
		AdjustmentFactor: st.AdjustmentFactor,
	}, true
}

// AdjustmentFactor — 1.0 для незнакомого символа.
func (l *PerformanceLedger) AdjustmentFactor(symbol string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.stats[symbol]; ok {
		return st.AdjustmentFactor
	}
	return 1.0
}

func (l *PerformanceLedger) Stats(symbol string) (models.PerformanceStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.stats[symbol]
	if !ok {
		return models.PerformanceStats{}, false
	}
	return *st, true
}

// History — копия журнала, outcome тоже копируется.
func (l *PerformanceLedger) History(symbol string) []models.PredictionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.history[symbol]
	out := make([]models.PredictionRecord, len(h))
	for i, r := range h {
		if r.Outcome != nil {
			o := *r.Outcome
			r.Outcome = &o
		}
		out[i] = r
	}
	return out
}

func (l *PerformanceLedger) Symbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.stats))
	for s := range l.stats {
		out = append(out, s)
	}
	return out
}
