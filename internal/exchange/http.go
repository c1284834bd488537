package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"trade_desk/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const brokerTimeLayout = "2006-01-02 15:04:05"

// HTTPClient — REST-клиент брокера. Авторизация статическим токеном, без ретраев.
// Таймаут <= 0 — без таймаута: зависший запрос просто задерживает вызывающего.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout < 0 {
		timeout = 0
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope — общий конверт ответа: {"status":"success","data":...} или {"status":"error","message":...}.
type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s %s marshal", method, path)
		}
		rdr = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return errors.Wrapf(err, "%s %s new request", method, path)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s do", method, path)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	var env envelope
	decodeErr := sonic.Unmarshal(data, &env)
	if resp.StatusCode/100 != 2 {
		if decodeErr == nil && env.Message != "" {
			return errors.Errorf("%s %s http %d: %s (%s)", method, path, resp.StatusCode, env.Message, env.ErrorType)
		}
		return errors.Errorf("%s %s http %d: %s", method, path, resp.StatusCode, string(data))
	}
	if decodeErr != nil {
		return errors.Wrapf(decodeErr, "%s %s decode", method, path)
	}
	if env.Status != "success" {
		return errors.Errorf("%s %s status=%s msg=%s", method, path, env.Status, env.Message)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "%s %s decode data", method, path)
	}
	return nil
}

// HistoricalData: candles приходят массивами [time, open, high, low, close, volume].
func (c *HTTPClient) HistoricalData(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("from", from.Format(brokerTimeLayout))
	q.Set("to", to.Format(brokerTimeLayout))

	var data struct {
		Candles [][]any `json:"candles"`
	}
	if err := c.do(ctx, http.MethodGet, "/instruments/historical", q, nil, &data); err != nil {
		return nil, errors.Wrap(ErrDataFetch, err.Error())
	}

	out := make([]models.Candle, 0, len(data.Candles))
	for i, row := range data.Candles {
		cd, err := parseCandleRow(row)
		if err != nil {
			return nil, errors.Wrapf(ErrDataFetch, "%s candle #%d: %v", symbol, i, err)
		}
		out = append(out, cd)
	}
	return out, nil
}

func parseCandleRow(row []any) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, errors.Errorf("expected 6 fields, got %d", len(row))
	}
	ts, ok := row[0].(string)
	if !ok {
		return models.Candle{}, errors.Errorf("timestamp is %T", row[0])
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return models.Candle{}, errors.Wrap(err, "timestamp")
	}
	nums := make([]float64, 5)
	for i := range nums {
		v, ok := row[i+1].(float64)
		if !ok {
			return models.Candle{}, errors.Errorf("field %d is %T", i+1, row[i+1])
		}
		nums[i] = v
	}
	return models.Candle{Time: t, Open: nums[0], High: nums[1], Low: nums[2], Close: nums[3], Volume: nums[4]}, nil
}

func (c *HTTPClient) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderRecord, error) {
	if req.Kind == "" {
		req.Kind = models.OrderMarket
	}
	if err := validateOrder(req); err != nil {
		return models.OrderRecord{}, err
	}
	var rec models.OrderRecord
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, &rec); err != nil {
		return models.OrderRecord{}, errors.Wrap(ErrOrderRejected, err.Error())
	}
	if rec.Status == models.OrderRejected {
		return rec, errors.Wrapf(ErrOrderRejected, "broker rejected order %s", rec.ID)
	}
	return rec, nil
}

func (c *HTTPClient) Funds(ctx context.Context) (models.Funds, error) {
	var f models.Funds
	err := c.do(ctx, http.MethodGet, "/user/funds", nil, nil, &f)
	return f, err
}

func (c *HTTPClient) Holdings(ctx context.Context) ([]models.Holding, error) {
	var h []models.Holding
	err := c.do(ctx, http.MethodGet, "/portfolio/holdings", nil, nil, &h)
	return h, err
}

func (c *HTTPClient) Profile(ctx context.Context) (models.Profile, error) {
	var p models.Profile
	err := c.do(ctx, http.MethodGet, "/user/profile", nil, nil, &p)
	return p, err
}

func (c *HTTPClient) Orders(ctx context.Context) ([]models.OrderRecord, error) {
	var o []models.OrderRecord
	err := c.do(ctx, http.MethodGet, "/orders", nil, nil, &o)
	return o, err
}
