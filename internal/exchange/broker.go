package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"
	"trade_desk/internal/models"

	"github.com/pkg/errors"
)

var (
	// ErrDataFetch — брокер не отдал свечи (сеть, неизвестный символ, кривой ответ).
	ErrDataFetch = errors.New("market data fetch failed")
	// ErrOrderRejected — брокер отказал в ордере или не смог его принять.
	ErrOrderRejected = errors.New("order rejected")
)

// MarketData — исторические свечи по символу.
type MarketData interface {
	HistoricalData(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error)
}

// OrderGateway — выставление ордеров.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderRecord, error)
}

// Account — данные счёта для дашборда.
type Account interface {
	Funds(ctx context.Context) (models.Funds, error)
	Holdings(ctx context.Context) ([]models.Holding, error)
	Profile(ctx context.Context) (models.Profile, error)
	Orders(ctx context.Context) ([]models.OrderRecord, error)
}

// Broker — всё, что умеет брокер. Реализации: Mock и HTTPClient.
type Broker interface {
	MarketData
	OrderGateway
	Account
}

var intervals = map[string]time.Duration{
	"minute":   time.Minute,
	"3minute":  3 * time.Minute,
	"5minute":  5 * time.Minute,
	"10minute": 10 * time.Minute,
	"15minute": 15 * time.Minute,
	"30minute": 30 * time.Minute,
	"60minute": time.Hour,
	"day":      24 * time.Hour,
}

// ParseInterval переводит метку брокера ("15minute", "day") в длительность свечи.
func ParseInterval(label string) (time.Duration, error) {
	d, ok := intervals[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return 0, fmt.Errorf("unknown interval %q", label)
	}
	return d, nil
}

func validateOrder(req models.OrderRequest) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return errors.Wrap(ErrOrderRejected, "empty symbol")
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return errors.Wrapf(ErrOrderRejected, "bad side %q", req.Side)
	}
	if req.Quantity <= 0 {
		return errors.Wrapf(ErrOrderRejected, "quantity must be positive, got %v", req.Quantity)
	}
	switch req.Kind {
	case models.OrderMarket, "":
	case models.OrderLimit:
		if req.LimitPrice <= 0 {
			return errors.Wrap(ErrOrderRejected, "limit order without price")
		}
	default:
		return errors.Wrapf(ErrOrderRejected, "unknown order kind %q", req.Kind)
	}
	return nil
}
