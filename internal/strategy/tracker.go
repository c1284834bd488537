package strategy

import (
	"sync"
	"trade_desk/internal/models"
)

const (
	// NeutralStrength — сила сигнала для ещё не виденного символа.
	NeutralStrength = 50.0

	// SignalChangeThreshold — минимальный накопленный сдвиг силы сигнала,
	// чтобы перевернуть позицию без пересечения SMA.
	SignalChangeThreshold = 15.0
)

type trackedPosition struct {
	stance     models.Side
	entryPrice *float64
	strength   float64
	checkpoint float64 // сила сигнала на момент последней смены позиции
}

// PositionTracker хранит позицию движка по символу. Диапазон значений не валидирует — это дело вызывающего.
type PositionTracker struct {
	mu    sync.Mutex
	state map[string]*trackedPosition
}

func NewPositionTracker() *PositionTracker {
	return &PositionTracker{state: make(map[string]*trackedPosition)}
}

func (t *PositionTracker) get(symbol string) *trackedPosition {
	if p, ok := t.state[symbol]; ok {
		return p
	}
	p := &trackedPosition{strength: NeutralStrength, checkpoint: NeutralStrength}
	t.state[symbol] = p
	return p
}

func (t *PositionTracker) Position(symbol string) models.Side {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.state[symbol]; ok {
		return p.stance
	}
	return models.SideNone
}

func (t *PositionTracker) SignalStrength(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.state[symbol]; ok {
		return p.strength
	}
	return NeutralStrength
}

// UpdatePosition перезаписывает сторону; цена входа меняется только если передана.
func (t *PositionTracker) UpdatePosition(symbol string, side models.Side, price *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.get(symbol)
	p.stance = side
	if price != nil {
		v := *price
		p.entryPrice = &v
	}
}

func (t *PositionTracker) EntryPrice(symbol string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.state[symbol]
	if !ok || p.entryPrice == nil {
		return 0, false
	}
	return *p.entryPrice, true
}

func (t *PositionTracker) ClearPosition(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.state[symbol]
	if !ok {
		return
	}
	p.stance = models.SideNone
	p.entryPrice = nil
}

func (t *PositionTracker) UpdateSignalStrength(symbol string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(symbol).strength = value
}

// Checkpoint — сила сигнала, зафиксированная при последней смене позиции.
func (t *PositionTracker) Checkpoint(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.state[symbol]; ok {
		return p.checkpoint
	}
	return NeutralStrength
}

func (t *PositionTracker) MarkCheckpoint(symbol string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(symbol).checkpoint = value
}

// Snapshot — копия всех позиций для UI.
func (t *PositionTracker) Snapshot() map[string]models.PositionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]models.PositionState, len(t.state))
	for sym, p := range t.state {
		ps := models.PositionState{Stance: p.stance, SignalStrength: p.strength}
		if p.entryPrice != nil {
			v := *p.entryPrice
			ps.EntryPrice = &v
		}
		out[sym] = ps
	}
	return out
}
