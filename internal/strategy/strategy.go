package strategy

import (
	"context"
	"math/rand"
	"time"
	"trade_desk/internal/models"
)

// MarketData — источник свечей (брокер или мок).
type MarketData interface {
	HistoricalData(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error)
}

// MarketClock — открыт ли рынок для символа в момент now.
type MarketClock interface {
	IsOpen(symbol string, now time.Time) bool
}

// Rand — источник джиттера уверенности. *rand.Rand подходит как есть.
type Rand interface {
	Float64() float64
}

// NewRand: seed == 0 — сидим от времени.
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// State — всё изменяемое состояние движка. Один экземпляр на процесс, в тестах — свой на тест.
type State struct {
	Positions *PositionTracker
	Ledger    *PerformanceLedger
}

func NewState() *State {
	return &State{
		Positions: NewPositionTracker(),
		Ledger:    NewPerformanceLedger(),
	}
}
