package api

import (
	"context"
	"net"
	"net/http"
	"time"
	"trade_desk/internal/exchange"
	"trade_desk/internal/modules/api/service"
	"trade_desk/internal/modules/config"
	"trade_desk/internal/notify"
	"trade_desk/internal/runner"
	"trade_desk/internal/strategy"
	"trade_desk/pkg/logger"

	"go.uber.org/fx"
)

func NewHandler(cfg *config.Config, state *service.State, engine *strategy.Engine, optimizer *strategy.Optimizer,
	exec *runner.Executor, sched *runner.Scheduler, st *strategy.State, account exchange.Account,
	journal *notify.Journal, stream *notify.LogStream) *Handler {
	return &Handler{
		State:     state,
		Engine:    engine,
		Optimizer: optimizer,
		Trader:    exec,
		AutoTrade: sched,
		Strategy:  st,
		Account:   account,
		Logs:      journal,
		LogStream: stream,
		Passcode:  cfg.Admin.Passcode,
	}
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, state *service.State, mux *http.ServeMux) {
	addr := cfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("[API] serve: %v", err)
				}
			}()
			state.SetReady(true)
			logger.Info("[API] listening on %s", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(
			service.NewState,
			NewHandler,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
