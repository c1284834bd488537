package models

import "time"

type Outcome struct {
	Successful   bool      `json:"successful"`
	ProfitLoss   float64   `json:"profitLoss"`
	ClosingPrice float64   `json:"closingPrice"`
	ClosingTime  time.Time `json:"closingTimestamp"`
}

// PredictionRecord — запись в журнале предсказаний. Outcome ставится не более одного раза.
type PredictionRecord struct {
	Time           time.Time `json:"timestamp"`
	Symbol         string    `json:"symbol"`
	Action         Action    `json:"action"`
	Confidence     float64   `json:"confidence"`
	Price          float64   `json:"price"`
	SignalStrength float64   `json:"signalStrength"`
	Outcome        *Outcome  `json:"outcome,omitempty"`
}

type PerformanceStats struct {
	TotalPredictions      int     `json:"totalPredictions"`
	SuccessfulPredictions int     `json:"successfulPredictions"`
	FailedPredictions     int     `json:"failedPredictions"`
	ProfitLossTotal       float64 `json:"profitLossTotal"`
	AdjustmentFactor      float64 `json:"adjustmentFactor"`
}

// SymbolPerformance — сводка для UI и сообщения рекомендации.
type SymbolPerformance struct {
	SuccessRate      float64 `json:"successRate"`
	TotalTrades      int     `json:"totalTrades"`
	ProfitLossTotal  float64 `json:"profitLossTotal"`
	AdjustmentFactor float64 `json:"adjustmentFactor"`
}
