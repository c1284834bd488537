package strategy

import "trade_desk/internal/models"

// SMA возвращает ряд той же длины, что и candles. Пока окна не хватает (i < period-1) — 0.
func SMA(candles []models.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(candles); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += candles[j].Close
		}
		out[i] = sum / float64(period)
	}
	return out
}
