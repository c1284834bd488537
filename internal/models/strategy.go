package models

import "time"

// Side как в раннере: "BUY"/"SELL" или пустая строка.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite возвращает встречную сторону (для закрытия позиции).
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideNone
	}
}

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Side переводит торговое действие в сторону ордера. HOLD -> SideNone.
func (a Action) Side() Side {
	switch a {
	case ActionBuy:
		return SideBuy
	case ActionSell:
		return SideSell
	default:
		return SideNone
	}
}

// StrategyParams — результат оптимизатора, вход для движка.
type StrategyParams struct {
	ShortPeriod          int     `json:"shortPeriod"`
	LongPeriod           int     `json:"longPeriod"`
	ConfidenceMultiplier float64 `json:"confidenceMultiplier"`
}

// DefaultStrategyParams — (20, 50, 1.0).
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{ShortPeriod: 20, LongPeriod: 50, ConfidenceMultiplier: 1.0}
}

// Recommendation — ответ движка на один прогон.
type Recommendation struct {
	Symbol         string    `json:"symbol"`
	Action         Action    `json:"action"`
	Confidence     float64   `json:"confidence"`
	Time           time.Time `json:"timestamp"`
	Price          float64   `json:"price"`
	Message        string    `json:"message"`
	SignalStrength float64   `json:"signalStrength"`
}
