package models

// PositionState — позиция движка по символу (не путать с реальными холдингами у брокера).
type PositionState struct {
	Stance         Side     `json:"stance"`
	EntryPrice     *float64 `json:"entryPrice,omitempty"`
	SignalStrength float64  `json:"signalStrength"`
}

// Holding — то, что брокер реально держит на счёте.
type Holding struct {
	Symbol    string  `json:"symbol" yaml:"symbol"`
	Quantity  float64 `json:"quantity" yaml:"quantity"`
	AvgPrice  float64 `json:"avgPrice" yaml:"avg_price"`
	LastPrice float64 `json:"lastPrice" yaml:"last_price"`
	PnL       float64 `json:"pnl" yaml:"pnl"`
}

type Funds struct {
	Available float64 `json:"available"`
	Used      float64 `json:"used"`
	Total     float64 `json:"total"`
}

type Profile struct {
	UserID   string `json:"userId" yaml:"user_id"`
	UserName string `json:"userName" yaml:"user_name"`
	Email    string `json:"email" yaml:"email"`
	Broker   string `json:"broker" yaml:"broker"`
}
