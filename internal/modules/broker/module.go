package broker

import (
	"fmt"
	"trade_desk/internal/exchange"
	"trade_desk/internal/modules/config"
	"trade_desk/pkg/logger"

	"go.uber.org/fx"
)

// NewBroker выбирает реализацию по broker.mode.
func NewBroker(cfg *config.Config) (exchange.Broker, error) {
	switch cfg.Broker.Mode {
	case "http":
		logger.Info("[BROKER] http client %s", cfg.Broker.BaseURL)
		return exchange.NewHTTPClient(cfg.Broker.BaseURL, cfg.Broker.APIToken, cfg.RequestTimeout), nil
	case "mock", "":
		fixtures, err := exchange.LoadFixtures(cfg.Broker.Fixtures)
		if err != nil {
			return nil, err
		}
		logger.Info("[BROKER] mock broker, %d instruments, seed=%d", len(fixtures.Instruments), cfg.Broker.Seed)
		return exchange.NewMock(fixtures, cfg.Broker.Seed), nil
	default:
		return nil, fmt.Errorf("unknown broker mode %q", cfg.Broker.Mode)
	}
}

func Module() fx.Option {
	return fx.Module("broker",
		fx.Provide(
			NewBroker,
			func(b exchange.Broker) exchange.MarketData { return b },
			func(b exchange.Broker) exchange.OrderGateway { return b },
			func(b exchange.Broker) exchange.Account { return b },
		),
	)
}
