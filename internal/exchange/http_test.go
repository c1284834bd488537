package exchange

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"trade_desk/internal/models"

	"github.com/pkg/errors"
)

func newBrokerServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token key:secret" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"status":"error","message":"invalid token","error_type":"TokenException"}`)
			return
		}
		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero means none", 0, 0},
		{"negative means none", -time.Second, 0},
		{"explicit", 3 * time.Second, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewHTTPClient("http://broker", "k", tt.in).http.Timeout; got != tt.want {
				t.Errorf("Timeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_HistoricalData(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"status":"success","data":{"candles":[
			["2026-10-19T09:15:00+05:30", 100, 101, 99, 100.5, 1200],
			["2026-10-19T09:45:00+05:30", 100.5, 102, 100, 101.5, 900]
		]}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "key:secret", time.Second)
	from := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	candles, err := c.HistoricalData(context.Background(), "INFY", "30minute", from, from.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("HistoricalData: %v", err)
	}
	if len(candles) != 2 || candles[1].Close != 101.5 || candles[0].Volume != 1200 {
		t.Errorf("unexpected candles %+v", candles)
	}
	if !strings.Contains(gotQuery, "symbol=INFY") || !strings.Contains(gotQuery, "interval=30minute") {
		t.Errorf("query = %s", gotQuery)
	}
}

func TestHTTPClient_HistoricalDataErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"http error", `{"status":"error","message":"boom"}`, http.StatusInternalServerError},
		{"status error", `{"status":"error","message":"no data"}`, http.StatusOK},
		{"broken json", `{"status":`, http.StatusOK},
		{"short row", `{"status":"success","data":{"candles":[["2026-10-19T09:15:00Z", 1, 2]]}}`, http.StatusOK},
		{"bad timestamp", `{"status":"success","data":{"candles":[["yesterday", 1, 2, 3, 4, 5]]}}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, "key:secret", time.Second)
			_, err := c.HistoricalData(context.Background(), "INFY", "day", time.Now().Add(-time.Hour), time.Now())
			if !errors.Is(err, ErrDataFetch) {
				t.Errorf("err = %v, want ErrDataFetch", err)
			}
		})
	}
}

func TestHTTPClient_PlaceOrder(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		_, _ = io.WriteString(w, `{"status":"success","data":{"id":"X1","symbol":"INFY","side":"BUY","quantity":2,"price":1500,"status":"COMPLETE","orderKind":"MARKET"}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key:secret", time.Second)
	rec, err := c.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "INFY", Side: models.SideBuy, Quantity: 2})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if rec.ID != "X1" || rec.Price != 1500 || rec.Status != models.OrderComplete {
		t.Errorf("unexpected record %+v", rec)
	}
	if !strings.Contains(got, `"orderKind":"MARKET"`) {
		t.Errorf("market kind must be defaulted, body %s", got)
	}
}

func TestHTTPClient_PlaceOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success","data":{"id":"X2","status":"REJECTED"}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key:secret", time.Second)
	_, err := c.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "INFY", Side: models.SideSell, Quantity: 1})
	if !errors.Is(err, ErrOrderRejected) {
		t.Errorf("err = %v, want ErrOrderRejected", err)
	}

	_, err = c.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "INFY", Side: models.SideSell})
	if !errors.Is(err, ErrOrderRejected) {
		t.Errorf("zero quantity: err = %v, want ErrOrderRejected", err)
	}
}

func TestHTTPClient_Account(t *testing.T) {
	srv := newBrokerServer(t, map[string]string{
		"GET /user/funds":         `{"status":"success","data":{"available":900,"used":100,"total":1000}}`,
		"GET /portfolio/holdings": `{"status":"success","data":[{"symbol":"INFY","quantity":10,"avgPrice":1490,"lastPrice":1520,"pnl":300}]}`,
		"GET /user/profile":       `{"status":"success","data":{"userId":"AB1234","userName":"Demo"}}`,
		"GET /orders":             `{"status":"success","data":[]}`,
	})
	c := NewHTTPClient(srv.URL, "key:secret", time.Second)
	ctx := context.Background()

	f, err := c.Funds(ctx)
	if err != nil || f.Total != 1000 {
		t.Errorf("Funds = %+v, %v", f, err)
	}
	h, err := c.Holdings(ctx)
	if err != nil || len(h) != 1 || h[0].PnL != 300 {
		t.Errorf("Holdings = %+v, %v", h, err)
	}
	p, err := c.Profile(ctx)
	if err != nil || p.UserID != "AB1234" {
		t.Errorf("Profile = %+v, %v", p, err)
	}
	o, err := c.Orders(ctx)
	if err != nil || len(o) != 0 {
		t.Errorf("Orders = %+v, %v", o, err)
	}

	bad := NewHTTPClient(srv.URL, "wrong", time.Second)
	if _, err := bad.Funds(ctx); err == nil || !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("expected auth error, got %v", err)
	}
}
