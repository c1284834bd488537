package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"trade_desk/internal/exchange"
	"trade_desk/internal/models"
	"trade_desk/internal/modules/api/service"
	"trade_desk/internal/notify"
	"trade_desk/internal/runner"
	"trade_desk/internal/strategy"
	"trade_desk/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	os.Exit(m.Run())
}

type stubEngine struct{ symbol string }

func (s *stubEngine) Recommend(_ context.Context, symbol string, p models.StrategyParams) models.Recommendation {
	s.symbol = symbol
	return models.Recommendation{Symbol: symbol, Action: models.ActionBuy, Confidence: 0.85 * p.ConfidenceMultiplier, Price: 1520}
}

type stubOptimizer struct{}

func (stubOptimizer) Optimize(context.Context, string) models.StrategyParams {
	return models.StrategyParams{ShortPeriod: 25, LongPeriod: 60, ConfidenceMultiplier: 1.1}
}

type stubTrader struct {
	err    error
	manual []models.OrderRequest
	closed []string
	auto   []string
}

func (s *stubTrader) AutoTrade(_ context.Context, symbol string) runner.TradeResult {
	s.auto = append(s.auto, symbol)
	return runner.TradeResult{Symbol: symbol, Outcome: runner.OutcomeHold}
}

func (s *stubTrader) ManualTrade(_ context.Context, req models.OrderRequest) (models.OrderRecord, error) {
	s.manual = append(s.manual, req)
	if s.err != nil {
		return models.OrderRecord{}, s.err
	}
	return models.OrderRecord{ID: "m1", Symbol: req.Symbol, Side: req.Side, Quantity: req.Quantity, Status: models.OrderComplete}, nil
}

func (s *stubTrader) ClosePosition(_ context.Context, symbol string, qty float64) (models.OrderRecord, error) {
	s.closed = append(s.closed, symbol)
	return models.OrderRecord{ID: "c1", Symbol: symbol, Quantity: qty}, nil
}

type stubToggle struct {
	enabled bool
	symbols []string
}

func (s *stubToggle) Enabled() bool               { return s.enabled }
func (s *stubToggle) SetEnabled(v bool)           { s.enabled = v }
func (s *stubToggle) Symbols() []string           { return s.symbols }
func (s *stubToggle) SetSymbols(symbols []string) { s.symbols = symbols }

type testAPI struct {
	h      *Handler
	srv    *httptest.Server
	trader *stubTrader
	toggle *stubToggle
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	journal := notify.NewJournal(10)
	a := &testAPI{
		trader: &stubTrader{},
		toggle: &stubToggle{symbols: []string{"INFY", "TCS"}},
	}
	a.h = &Handler{
		State:     service.NewState(),
		Engine:    &stubEngine{},
		Optimizer: stubOptimizer{},
		Trader:    a.trader,
		AutoTrade: a.toggle,
		Strategy:  strategy.NewState(),
		Account:   exchange.NewMock(exchange.DefaultFixtures(), 7),
		Logs:      journal,
		LogStream: notify.NewLogStream(journal),
		Passcode:  "1234",
	}
	a.srv = httptest.NewServer(NewMux(a.h))
	t.Cleanup(a.srv.Close)
	return a
}

func (a *testAPI) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		data, _ := io.ReadAll(resp.Body)
		if err := sonic.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	a := newTestAPI(t)
	if code := a.do(t, "GET", "/livez", "", nil); code != http.StatusOK {
		t.Errorf("livez = %d", code)
	}
	if code := a.do(t, "GET", "/readyz", "", nil); code != http.StatusServiceUnavailable {
		t.Errorf("readyz before start = %d", code)
	}
	a.h.State.SetReady(true)
	if code := a.do(t, "GET", "/readyz", "", nil); code != http.StatusOK {
		t.Errorf("readyz = %d", code)
	}
	var health map[string]any
	if code := a.do(t, "GET", "/healthz", "", &health); code != http.StatusOK || health["ready"] != true {
		t.Errorf("healthz = %d %v", code, health)
	}
}

func TestRecommendation(t *testing.T) {
	a := newTestAPI(t)
	if code := a.do(t, "GET", "/api/recommendation", "", nil); code != http.StatusBadRequest {
		t.Errorf("missing symbol = %d", code)
	}

	var resp struct {
		Params         models.StrategyParams `json:"params"`
		Recommendation models.Recommendation `json:"recommendation"`
	}
	if code := a.do(t, "GET", "/api/recommendation?symbol=infy", "", &resp); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if resp.Params.ShortPeriod != 25 || resp.Recommendation.Symbol != "INFY" || resp.Recommendation.Action != models.ActionBuy {
		t.Errorf("unexpected %+v", resp)
	}

	var params models.StrategyParams
	if code := a.do(t, "GET", "/api/params?symbol=TCS", "", &params); code != http.StatusOK || params.LongPeriod != 60 {
		t.Errorf("params = %d %+v", code, params)
	}
}

func TestPlaceOrder(t *testing.T) {
	a := newTestAPI(t)

	if code := a.do(t, "POST", "/api/orders", "{", nil); code != http.StatusBadRequest {
		t.Errorf("bad json = %d", code)
	}

	var order models.OrderRecord
	code := a.do(t, "POST", "/api/orders", `{"symbol":" infy ","side":"buy","quantity":2,"orderKind":"market"}`, &order)
	if code != http.StatusOK || order.ID != "m1" {
		t.Fatalf("code = %d order = %+v", code, order)
	}
	req := a.trader.manual[0]
	if req.Symbol != "INFY" || req.Side != models.SideBuy || req.Kind != models.OrderMarket {
		t.Errorf("request not normalised: %+v", req)
	}

	a.trader.err = errors.Wrap(exchange.ErrOrderRejected, "insufficient funds")
	if code := a.do(t, "POST", "/api/orders", `{"symbol":"INFY","side":"BUY","quantity":1}`, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("rejected = %d", code)
	}
	a.trader.err = errors.New("connection reset")
	if code := a.do(t, "POST", "/api/orders", `{"symbol":"INFY","side":"BUY","quantity":1}`, nil); code != http.StatusBadGateway {
		t.Errorf("broker failure = %d", code)
	}
}

func TestClosePosition(t *testing.T) {
	a := newTestAPI(t)
	if code := a.do(t, "POST", "/api/positions/close", `{"symbol":"INFY"}`, nil); code != http.StatusConflict {
		t.Errorf("no position = %d", code)
	}

	entry := 1500.0
	a.h.Strategy.Positions.UpdatePosition("INFY", models.SideBuy, &entry)
	var order models.OrderRecord
	if code := a.do(t, "POST", "/api/positions/close", `{"symbol":"infy","quantity":3}`, &order); code != http.StatusOK {
		t.Fatalf("close = %d", code)
	}
	if len(a.trader.closed) != 1 || order.Quantity != 3 {
		t.Errorf("closed = %v order = %+v", a.trader.closed, order)
	}

	var positions map[string]models.PositionState
	if code := a.do(t, "GET", "/api/positions", "", &positions); code != http.StatusOK || positions["INFY"].Stance != models.SideBuy {
		t.Errorf("positions = %d %+v", code, positions)
	}
}

func TestPerformance(t *testing.T) {
	a := newTestAPI(t)
	if code := a.do(t, "GET", "/api/performance?symbol=INFY", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown = %d", code)
	}

	l := a.h.Strategy.Ledger
	l.RecordPrediction("INFY", models.PredictionRecord{Action: models.ActionBuy, Price: 100})
	l.RecordOutcome("INFY", models.ActionBuy, 100, 110, true)

	var resp struct {
		Performance models.SymbolPerformance  `json:"performance"`
		History     []models.PredictionRecord `json:"history"`
	}
	if code := a.do(t, "GET", "/api/performance?symbol=INFY", "", &resp); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if resp.Performance.SuccessRate != 1 || resp.Performance.TotalTrades != 1 || len(resp.History) != 1 {
		t.Errorf("unexpected %+v", resp)
	}

	var all map[string]models.SymbolPerformance
	if code := a.do(t, "GET", "/api/performance", "", &all); code != http.StatusOK || len(all) != 1 {
		t.Errorf("all = %d %+v", code, all)
	}
}

func TestAccountEndpoints(t *testing.T) {
	a := newTestAPI(t)
	var funds models.Funds
	if code := a.do(t, "GET", "/api/funds", "", &funds); code != http.StatusOK || funds.Available != 100000 {
		t.Errorf("funds = %d %+v", code, funds)
	}
	var holdings []models.Holding
	if code := a.do(t, "GET", "/api/holdings", "", &holdings); code != http.StatusOK || len(holdings) != 0 {
		t.Errorf("holdings = %d %+v", code, holdings)
	}
	var profile models.Profile
	if code := a.do(t, "GET", "/api/profile", "", &profile); code != http.StatusOK || profile.Broker != "mock" {
		t.Errorf("profile = %d %+v", code, profile)
	}
	var orders []models.OrderRecord
	if code := a.do(t, "GET", "/api/orders", "", &orders); code != http.StatusOK {
		t.Errorf("orders = %d", code)
	}
}

func TestLogs(t *testing.T) {
	a := newTestAPI(t)
	a.h.Logs.(*notify.Journal).AddLog("Market is closed", models.SeverityWarning)
	var entries []models.LogEntry
	if code := a.do(t, "GET", "/api/logs", "", &entries); code != http.StatusOK || len(entries) != 1 {
		t.Fatalf("logs = %d %+v", code, entries)
	}
	if entries[0].Severity != models.SeverityWarning {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestAdminAutoTrade(t *testing.T) {
	a := newTestAPI(t)

	if code := a.do(t, "POST", "/api/admin/autotrade", `{"passcode":"0000","enabled":true}`, nil); code != http.StatusForbidden {
		t.Errorf("wrong passcode = %d", code)
	}
	if a.toggle.enabled {
		t.Fatal("wrong passcode must not toggle")
	}

	var status struct {
		Enabled bool     `json:"enabled"`
		Symbols []string `json:"symbols"`
	}
	code := a.do(t, "POST", "/api/admin/autotrade", `{"passcode":"1234","enabled":true,"symbols":["BTCUSDT"]}`, &status)
	if code != http.StatusOK || !status.Enabled || len(status.Symbols) != 1 {
		t.Errorf("toggle = %d %+v", code, status)
	}

	a.h.Passcode = ""
	if code := a.do(t, "POST", "/api/admin/autotrade", `{"passcode":"","enabled":false}`, nil); code != http.StatusForbidden {
		t.Errorf("empty passcode must lock admin, got %d", code)
	}
}

func TestAdminRunNow(t *testing.T) {
	a := newTestAPI(t)
	var results []runner.TradeResult
	if code := a.do(t, "POST", "/api/admin/autotrade/run", `{"passcode":"1234"}`, &results); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if len(results) != 2 || len(a.trader.auto) != 2 {
		t.Errorf("results = %+v", results)
	}
	if a.h.State.LastAutoRun().IsZero() {
		t.Error("last run must be recorded")
	}
}
