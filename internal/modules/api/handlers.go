package api

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"
	"trade_desk/internal/exchange"
	"trade_desk/internal/models"
	"trade_desk/internal/modules/api/service"
	"trade_desk/internal/runner"
	"trade_desk/internal/strategy"
	"trade_desk/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type Trader interface {
	AutoTrade(ctx context.Context, symbol string) runner.TradeResult
	ManualTrade(ctx context.Context, req models.OrderRequest) (models.OrderRecord, error)
	ClosePosition(ctx context.Context, symbol string, qty float64) (models.OrderRecord, error)
}

// AutoTradeControl — *runner.Scheduler.
type AutoTradeControl interface {
	Enabled() bool
	SetEnabled(v bool)
	Symbols() []string
	SetSymbols(symbols []string)
}

type LogSource interface {
	Entries() []models.LogEntry
}

// Handler — все ручки дашборда.
type Handler struct {
	State     *service.State
	Engine    runner.Recommender
	Optimizer runner.ParamsOptimizer
	Trader    Trader
	AutoTrade AutoTradeControl
	Strategy  *strategy.State
	Account   exchange.Account
	Logs      LogSource
	LogStream http.Handler
	Passcode  string
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	payload, err := sonic.Marshal(v)
	if err != nil {
		logger.Error("[API] encode response: %v", err)
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return sonic.Unmarshal(body, v)
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
}

func NewMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !h.State.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("GET /healthz", h.health)

	mux.HandleFunc("GET /api/recommendation", h.recommendation)
	mux.HandleFunc("GET /api/params", h.params)
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders", h.orders)
	mux.HandleFunc("POST /api/positions/close", h.closePosition)
	mux.HandleFunc("GET /api/positions", h.positions)
	mux.HandleFunc("GET /api/performance", h.performance)
	mux.HandleFunc("GET /api/funds", h.funds)
	mux.HandleFunc("GET /api/holdings", h.holdings)
	mux.HandleFunc("GET /api/profile", h.profile)
	mux.HandleFunc("GET /api/logs", h.logs)
	mux.HandleFunc("GET /api/autotrade", h.autoTradeStatus)
	mux.HandleFunc("POST /api/admin/autotrade", h.adminAutoTrade)
	mux.HandleFunc("POST /api/admin/autotrade/run", h.adminRunNow)
	if h.LogStream != nil {
		mux.Handle("GET /ws/logs", h.LogStream)
	}

	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ready":     h.State.Ready(),
		"uptimeSec": int64(h.State.Uptime().Seconds()),
		"autoTrade": h.AutoTrade.Enabled(),
		"lastAutoRunUnix": func() int64 {
			t := h.State.LastAutoRun()
			if t.IsZero() {
				return 0
			}
			return t.Unix()
		}(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recommendation(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	params := h.Optimizer.Optimize(r.Context(), symbol)
	rec := h.Engine.Recommend(r.Context(), symbol, params)
	writeJSON(w, http.StatusOK, map[string]any{
		"params":         params,
		"recommendation": rec,
	})
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	writeJSON(w, http.StatusOK, h.Optimizer.Optimize(r.Context(), symbol))
}

func orderErrorStatus(err error) int {
	if errors.Is(err, exchange.ErrOrderRejected) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad order request: "+err.Error())
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Side = models.Side(strings.ToUpper(string(req.Side)))
	req.Kind = models.OrderKind(strings.ToUpper(string(req.Kind)))

	order, err := h.Trader.ManualTrade(r.Context(), req)
	if err != nil {
		writeError(w, orderErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Account.Orders(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type closeRequest struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}

func (h *Handler) closePosition(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad close request: "+err.Error())
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if h.Strategy.Positions.Position(symbol) == models.SideNone {
		writeError(w, http.StatusConflict, "no open position for "+symbol)
		return
	}
	order, err := h.Trader.ClosePosition(r.Context(), symbol, req.Quantity)
	if err != nil {
		writeError(w, orderErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) positions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Strategy.Positions.Snapshot())
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	ledger := h.Strategy.Ledger
	symbol := symbolParam(r)
	if symbol == "" {
		out := make(map[string]models.SymbolPerformance)
		for _, s := range ledger.Symbols() {
			if p, ok := ledger.SymbolPerformance(s); ok {
				out[s] = p
			}
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	perf, ok := ledger.SymbolPerformance(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no predictions for "+symbol)
		return
	}
	stats, _ := ledger.Stats(symbol)
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":      symbol,
		"performance": perf,
		"stats":       stats,
		"history":     ledger.History(symbol),
	})
}

func (h *Handler) funds(w http.ResponseWriter, r *http.Request) {
	f, err := h.Account.Funds(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) holdings(w http.ResponseWriter, r *http.Request) {
	hs, err := h.Account.Holdings(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Account.Profile(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Logs.Entries())
}

func (h *Handler) autoTradeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": h.AutoTrade.Enabled(),
		"symbols": h.AutoTrade.Symbols(),
	})
}

// checkPasscode: пустой passcode в конфиге закрывает админку целиком.
func (h *Handler) checkPasscode(got string) bool {
	if h.Passcode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.Passcode)) == 1
}

type adminRequest struct {
	Passcode string   `json:"passcode"`
	Enabled  *bool    `json:"enabled,omitempty"`
	Symbols  []string `json:"symbols,omitempty"`
}

func (h *Handler) adminAutoTrade(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad admin request: "+err.Error())
		return
	}
	if !h.checkPasscode(req.Passcode) {
		writeError(w, http.StatusForbidden, "invalid passcode")
		return
	}
	if req.Symbols != nil {
		h.AutoTrade.SetSymbols(req.Symbols)
	}
	if req.Enabled != nil {
		h.AutoTrade.SetEnabled(*req.Enabled)
	}
	h.autoTradeStatus(w, r)
}

// adminRunNow — разовый автопрогон по списку символов, независимо от флага enabled.
func (h *Handler) adminRunNow(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad admin request: "+err.Error())
		return
	}
	if !h.checkPasscode(req.Passcode) {
		writeError(w, http.StatusForbidden, "invalid passcode")
		return
	}
	symbols := h.AutoTrade.Symbols()
	results := make([]runner.TradeResult, 0, len(symbols))
	for _, s := range symbols {
		results = append(results, h.Trader.AutoTrade(r.Context(), s))
	}
	h.State.TouchAutoRun(time.Now())
	writeJSON(w, http.StatusOK, results)
}
