package runner

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
	"trade_desk/internal/exchange"
	"trade_desk/internal/models"
	"trade_desk/internal/strategy"
	"trade_desk/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	os.Exit(m.Run())
}

type fakeRecommender struct {
	rec   models.Recommendation
	calls int
}

func (f *fakeRecommender) Recommend(_ context.Context, symbol string, _ models.StrategyParams) models.Recommendation {
	f.calls++
	r := f.rec
	r.Symbol = symbol
	return r
}

type fakeOptimizer struct{}

func (fakeOptimizer) Optimize(context.Context, string) models.StrategyParams {
	return models.DefaultStrategyParams()
}

type fakeGateway struct {
	price float64
	err   error
	reqs  []models.OrderRequest
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req models.OrderRequest) (models.OrderRecord, error) {
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return models.OrderRecord{}, g.err
	}
	return models.OrderRecord{
		ID: "ord-1", Symbol: req.Symbol, Side: req.Side, Quantity: req.Quantity,
		Price: g.price, Status: models.OrderComplete, Kind: req.Kind,
	}, nil
}

type fakeHours struct {
	open, crypto bool
}

func (h fakeHours) IsOpen(string, time.Time) bool { return h.open }
func (h fakeHours) IsCrypto(string) bool          { return h.crypto }

type fakeSink struct {
	mu      sync.Mutex
	entries []models.LogEntry
}

func (s *fakeSink) AddLog(msg string, sev models.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, models.LogEntry{Message: msg, Severity: sev})
}

func (s *fakeSink) last() models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return models.LogEntry{}
	}
	return s.entries[len(s.entries)-1]
}

type fixture struct {
	exec  *Executor
	rec   *fakeRecommender
	gw    *fakeGateway
	sink  *fakeSink
	state *strategy.State
}

func newFixture(rec models.Recommendation, hours fakeHours) *fixture {
	f := &fixture{
		rec:   &fakeRecommender{rec: rec},
		gw:    &fakeGateway{price: 100},
		sink:  &fakeSink{},
		state: strategy.NewState(),
	}
	f.exec = NewExecutor(DefaultExecutorConfig(), f.rec, fakeOptimizer{}, f.gw, hours, f.state, f.sink)
	return f
}

func TestExecutor_AutoTrade(t *testing.T) {
	tests := []struct {
		name        string
		action      models.Action
		confidence  float64
		hours       fakeHours
		gwErr       error
		wantOutcome string
		wantOrders  int
		wantSev     models.Severity
	}{
		{"hold does nothing", models.ActionHold, 0.9, fakeHours{open: true}, nil, OutcomeHold, 0, models.SeverityInfo},
		{"market closed never orders", models.ActionBuy, 0.65, fakeHours{open: false}, nil, OutcomeMarketClosed, 0, models.SeverityWarning},
		{"market closed even when confident", models.ActionSell, 0.95, fakeHours{open: false}, nil, OutcomeMarketClosed, 0, models.SeverityWarning},
		{"equity below threshold", models.ActionBuy, 0.65, fakeHours{open: true}, nil, OutcomeManualApproval, 0, models.SeverityInfo},
		{"equity at threshold", models.ActionBuy, 0.7, fakeHours{open: true}, nil, OutcomePlaced, 1, models.SeveritySuccess},
		{"crypto lower threshold", models.ActionSell, 0.65, fakeHours{open: true, crypto: true}, nil, OutcomePlaced, 1, models.SeveritySuccess},
		{"crypto below threshold", models.ActionBuy, 0.55, fakeHours{open: true, crypto: true}, nil, OutcomeManualApproval, 0, models.SeverityInfo},
		{"order failure logged", models.ActionBuy, 0.9, fakeHours{open: true}, exchange.ErrOrderRejected, OutcomeOrderFailed, 1, models.SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(models.Recommendation{Action: tt.action, Confidence: tt.confidence, Price: 100}, tt.hours)
			f.gw.err = tt.gwErr

			res := f.exec.AutoTrade(context.Background(), "INFY")
			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %s, want %s", res.Outcome, tt.wantOutcome)
			}
			if len(f.gw.reqs) != tt.wantOrders {
				t.Fatalf("orders = %d, want %d", len(f.gw.reqs), tt.wantOrders)
			}
			if got := f.sink.last().Severity; got != tt.wantSev {
				t.Errorf("log severity = %s, want %s", got, tt.wantSev)
			}
			if tt.wantOrders == 1 {
				req := f.gw.reqs[0]
				if req.Side != tt.action.Side() || req.Kind != models.OrderMarket || req.Quantity != 1 {
					t.Errorf("unexpected request %+v", req)
				}
			}
			if tt.wantOutcome == OutcomePlaced && res.Order == nil {
				t.Error("placed result must carry the order")
			}
		})
	}
}

func TestExecutor_ManualTradeOpensPosition(t *testing.T) {
	f := newFixture(models.Recommendation{}, fakeHours{open: true})
	f.gw.price = 1500

	order, err := f.exec.ManualTrade(context.Background(), models.OrderRequest{Symbol: "INFY", Side: models.SideBuy, Quantity: 3})
	if err != nil {
		t.Fatalf("ManualTrade: %v", err)
	}
	if order.Quantity != 3 {
		t.Errorf("quantity = %v", order.Quantity)
	}
	pt := f.state.Positions
	if pt.Position("INFY") != models.SideBuy {
		t.Error("stance must be BUY")
	}
	if entry, ok := pt.EntryPrice("INFY"); !ok || entry != 1500 {
		t.Errorf("entry = %v, %v", entry, ok)
	}
	if f.sink.last().Severity != models.SeveritySuccess {
		t.Error("success must be logged")
	}
}

func TestExecutor_ManualTradeSameSideKeepsEntry(t *testing.T) {
	f := newFixture(models.Recommendation{}, fakeHours{open: true})
	entry := 100.0
	f.state.Positions.UpdatePosition("INFY", models.SideBuy, &entry)
	f.gw.price = 120

	if _, err := f.exec.ManualTrade(context.Background(), models.OrderRequest{Symbol: "INFY", Side: models.SideBuy}); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.state.Positions.EntryPrice("INFY"); got != 100 {
		t.Errorf("entry = %v, want 100", got)
	}
	if f.gw.reqs[0].Quantity != 1 || f.gw.reqs[0].Kind != models.OrderMarket {
		t.Errorf("defaults not applied: %+v", f.gw.reqs[0])
	}
}

func TestExecutor_ManualFlipRecordsOutcome(t *testing.T) {
	f := newFixture(models.Recommendation{}, fakeHours{open: true})
	f.state.Ledger.RecordPrediction("INFY", models.PredictionRecord{Action: models.ActionSell, Price: 100})
	entry := 100.0
	f.state.Positions.UpdatePosition("INFY", models.SideSell, &entry)
	f.gw.price = 90

	if _, err := f.exec.ManualTrade(context.Background(), models.OrderRequest{Symbol: "INFY", Side: models.SideBuy, Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	h := f.state.Ledger.History("INFY")
	if h[0].Outcome == nil || !h[0].Outcome.Successful || h[0].Outcome.ProfitLoss != 10 {
		t.Errorf("unexpected outcome %+v", h[0].Outcome)
	}
	if f.state.Positions.Position("INFY") != models.SideBuy {
		t.Error("stance must flip to BUY")
	}
	if got, _ := f.state.Positions.EntryPrice("INFY"); got != 90 {
		t.Errorf("entry = %v, want 90", got)
	}
}

func TestExecutor_ManualTradeFailure(t *testing.T) {
	f := newFixture(models.Recommendation{}, fakeHours{open: true})
	f.gw.err = exchange.ErrOrderRejected

	_, err := f.exec.ManualTrade(context.Background(), models.OrderRequest{Symbol: "INFY", Side: models.SideBuy, Quantity: 1})
	if !errors.Is(err, exchange.ErrOrderRejected) {
		t.Errorf("err = %v, want ErrOrderRejected", err)
	}
	if f.state.Positions.Position("INFY") != models.SideNone {
		t.Error("failed order must not touch the tracker")
	}
	if f.sink.last().Severity != models.SeverityError {
		t.Error("failure must be logged as error")
	}
}

func TestExecutor_ClosePosition(t *testing.T) {
	f := newFixture(models.Recommendation{}, fakeHours{open: true})
	f.state.Ledger.RecordPrediction("TCS", models.PredictionRecord{Action: models.ActionBuy, Price: 100})
	entry := 100.0
	f.state.Positions.UpdatePosition("TCS", models.SideBuy, &entry)
	f.state.Positions.UpdateSignalStrength("TCS", 62)
	f.gw.price = 95

	order, err := f.exec.ClosePosition(context.Background(), "TCS", 2)
	if err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if order.Side != models.SideSell || order.Quantity != 2 {
		t.Errorf("unexpected order %+v", order)
	}
	h := f.state.Ledger.History("TCS")
	if h[0].Outcome == nil || h[0].Outcome.Successful || h[0].Outcome.ProfitLoss != -5 {
		t.Errorf("unexpected outcome %+v", h[0].Outcome)
	}
	pt := f.state.Positions
	if pt.Position("TCS") != models.SideNone {
		t.Error("position must be cleared")
	}
	if _, ok := pt.EntryPrice("TCS"); ok {
		t.Error("entry price must be cleared")
	}
	if pt.Checkpoint("TCS") != 62 {
		t.Errorf("checkpoint = %v, want 62", pt.Checkpoint("TCS"))
	}
}

func TestExecutor_ClosePositionWithoutPosition(t *testing.T) {
	f := newFixture(models.Recommendation{}, fakeHours{open: true})
	if _, err := f.exec.ClosePosition(context.Background(), "TCS", 1); err == nil {
		t.Error("expected error")
	}
	if len(f.gw.reqs) != 0 {
		t.Error("no order must be sent")
	}
}
