package exchange

import (
	"context"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"trade_desk/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type Instrument struct {
	Symbol     string  `yaml:"symbol"`
	Price      float64 `yaml:"price"`
	Volatility float64 `yaml:"volatility"` // амплитуда шума на минуту, доля цены
}

// Fixtures — стартовое состояние мок-брокера.
type Fixtures struct {
	Profile     models.Profile   `yaml:"profile"`
	Funds       float64          `yaml:"funds"`
	Instruments []Instrument     `yaml:"instruments"`
	Holdings    []models.Holding `yaml:"holdings"`
}

func DefaultFixtures() *Fixtures {
	return &Fixtures{
		Profile: models.Profile{UserID: "DEMO01", UserName: "Demo Trader", Email: "demo@example.com", Broker: "mock"},
		Funds:   100000,
		Instruments: []Instrument{
			{Symbol: "RELIANCE", Price: 2450.5, Volatility: 0.004},
			{Symbol: "INFY", Price: 1520, Volatility: 0.003},
			{Symbol: "TCS", Price: 3890, Volatility: 0.0025},
			{Symbol: "BTCUSDT", Price: 64250, Volatility: 0.012},
		},
	}
}

// LoadFixtures читает yaml. Пустой path — дефолтный набор.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "" {
		return DefaultFixtures(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read fixtures %s", path)
	}
	fx := &Fixtures{}
	if err := yaml.Unmarshal(data, fx); err != nil {
		return nil, errors.Wrapf(err, "parse fixtures %s", path)
	}
	if len(fx.Instruments) == 0 {
		return nil, errors.Errorf("fixtures %s: no instruments", path)
	}
	return fx, nil
}

type mockHolding struct {
	qty  decimal.Decimal
	cost decimal.Decimal // суммарная стоимость входа
}

// Mock — брокер в памяти: детерминированные свечи, мгновенное исполнение, кошелёк на decimal.
type Mock struct {
	mu          sync.Mutex
	seed        int64
	profile     models.Profile
	instruments map[string]Instrument
	available   decimal.Decimal
	holdings    map[string]*mockHolding
	orders      []models.OrderRecord

	now   func() time.Time
	newID func() string
}

func NewMock(fx *Fixtures, seed int64) *Mock {
	m := &Mock{
		seed:        seed,
		profile:     fx.Profile,
		instruments: make(map[string]Instrument, len(fx.Instruments)),
		available:   decimal.NewFromFloat(fx.Funds),
		holdings:    make(map[string]*mockHolding),
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, in := range fx.Instruments {
		in.Symbol = strings.ToUpper(in.Symbol)
		if in.Volatility <= 0 {
			in.Volatility = 0.005
		}
		m.instruments[in.Symbol] = in
	}
	for _, h := range fx.Holdings {
		qty := decimal.NewFromFloat(h.Quantity)
		m.holdings[strings.ToUpper(h.Symbol)] = &mockHolding{
			qty:  qty,
			cost: qty.Mul(decimal.NewFromFloat(h.AvgPrice)),
		}
	}
	return m
}

func (m *Mock) instrument(symbol string) (Instrument, bool) {
	in, ok := m.instruments[strings.ToUpper(symbol)]
	return in, ok
}

// HistoricalData строит свечи (from, to] по сетке интервала. Свеча помечена временем закрытия.
// Цена задана на общей минутной сетке, поэтому свечи любых интервалов и рыночное исполнение
// видят одну и ту же траекторию, а пересекающиеся окна согласованы.
func (m *Mock) HistoricalData(_ context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	step, err := ParseInterval(interval)
	if err != nil {
		return nil, errors.Wrap(ErrDataFetch, err.Error())
	}
	in, ok := m.instrument(symbol)
	if !ok {
		return nil, errors.Wrapf(ErrDataFetch, "unknown instrument %s", symbol)
	}
	if !to.After(from) {
		return nil, errors.Wrapf(ErrDataFetch, "empty window %s..%s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	stepSec := int64(step / time.Second)
	first := from.Unix()/stepSec + 1
	last := to.Unix() / stepSec
	if first > last {
		first = last
	}

	out := make([]models.Candle, 0, last-first+1)
	for k := first; k <= last; k++ {
		openMin := (k - 1) * stepSec / 60
		closeMin := k * stepSec / 60
		open := m.priceAt(in, openMin)
		closePx := m.priceAt(in, closeMin)
		spread := in.Price * in.Volatility * 0.5 * math.Abs(m.noise(in.Symbol, closeMin, 1))
		out = append(out, models.Candle{
			Time:   time.Unix(k*stepSec, 0).UTC(),
			Open:   round2(open),
			High:   round2(math.Max(open, closePx) + spread),
			Low:    round2(math.Min(open, closePx) - spread),
			Close:  round2(closePx),
			Volume: math.Floor(1000 + 9000*math.Abs(m.noise(in.Symbol, closeMin, 2))),
		})
	}
	return out, nil
}

// priceAt — цена на минуте minute (unix/60): медленные волны (около 4.8 и 1.4 суток) плюс шум,
// масштабированные волатильностью инструмента.
func (m *Mock) priceAt(in Instrument, minute int64) float64 {
	x := float64(minute)
	wave := math.Sin(x/1100)*0.6 + math.Sin(x/330)*0.3
	return in.Price * (1 + in.Volatility*(6*wave+m.noise(in.Symbol, minute, 0)))
}

// noise — детерминированное значение в [-1, 1] (splitmix64 от seed, символа, минуты и канала).
func (m *Mock) noise(symbol string, minute int64, channel uint64) float64 {
	h := uint64(m.seed)*0x9E3779B97F4A7C15 ^ uint64(minute) ^ channel<<56
	for i := 0; i < len(symbol); i++ {
		h = (h ^ uint64(symbol[i])) * 0x100000001B3
	}
	h += 0x9E3779B97F4A7C15
	h = (h ^ (h >> 30)) * 0xBF58476D1CE4E5B9
	h = (h ^ (h >> 27)) * 0x94D049BB133111EB
	h ^= h >> 31
	return float64(h>>11)/float64(1<<53)*2 - 1
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// lastPrice — цена текущей минуты, той же сетки, что и закрытия свечей.
func (m *Mock) lastPrice(in Instrument) float64 {
	return round2(m.priceAt(in, m.now().Unix()/60))
}

// PlaceOrder исполняет ордер сразу: MARKET по текущей цене, LIMIT по лимитной.
// Покупка сверх доступных средств отклоняется и остаётся в истории со статусом REJECTED.
func (m *Mock) PlaceOrder(_ context.Context, req models.OrderRequest) (models.OrderRecord, error) {
	if req.Kind == "" {
		req.Kind = models.OrderMarket
	}
	if err := validateOrder(req); err != nil {
		return models.OrderRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.instrument(req.Symbol)
	if !ok {
		return models.OrderRecord{}, errors.Wrapf(ErrOrderRejected, "unknown instrument %s", req.Symbol)
	}
	price := m.lastPrice(in)
	if req.Kind == models.OrderLimit {
		price = req.LimitPrice
	}

	rec := models.OrderRecord{
		ID:       m.newID(),
		Time:     m.now(),
		Symbol:   in.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Price:    price,
		Status:   models.OrderComplete,
		Kind:     req.Kind,
	}

	qty := decimal.NewFromFloat(req.Quantity)
	px := decimal.NewFromFloat(price)
	amount := qty.Mul(px)

	h, ok := m.holdings[in.Symbol]
	if !ok {
		h = &mockHolding{qty: decimal.Zero, cost: decimal.Zero}
	}

	switch req.Side {
	case models.SideBuy:
		if amount.GreaterThan(m.available) {
			rec.Status = models.OrderRejected
			m.orders = append(m.orders, rec)
			return rec, errors.Wrapf(ErrOrderRejected, "insufficient funds: need %s, available %s",
				amount.StringFixed(2), m.available.StringFixed(2))
		}
		m.available = m.available.Sub(amount)
		h.qty = h.qty.Add(qty)
		h.cost = h.cost.Add(amount)
	case models.SideSell:
		m.available = m.available.Add(amount)
		if h.qty.IsPositive() {
			// себестоимость уменьшаем пропорционально проданному
			avg := h.cost.Div(h.qty)
			h.cost = h.cost.Sub(avg.Mul(decimal.Min(qty, h.qty)))
		}
		h.qty = h.qty.Sub(qty)
		if !h.qty.IsPositive() {
			h.cost = decimal.Zero
		}
	}

	if h.qty.IsZero() {
		delete(m.holdings, in.Symbol)
	} else {
		m.holdings[in.Symbol] = h
	}
	m.orders = append(m.orders, rec)
	return rec, nil
}

func (m *Mock) Funds(_ context.Context) (models.Funds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := decimal.Zero
	for _, h := range m.holdings {
		if h.qty.IsPositive() {
			used = used.Add(h.cost)
		}
	}
	return models.Funds{
		Available: m.available.Round(2).InexactFloat64(),
		Used:      used.Round(2).InexactFloat64(),
		Total:     m.available.Add(used).Round(2).InexactFloat64(),
	}, nil
}

func (m *Mock) Holdings(_ context.Context) ([]models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Holding, 0, len(m.holdings))
	for sym, h := range m.holdings {
		qty := h.qty.InexactFloat64()
		avg := 0.0
		if h.qty.IsPositive() {
			avg = h.cost.Div(h.qty).Round(2).InexactFloat64()
		}
		last := 0.0
		if in, ok := m.instrument(sym); ok {
			last = m.lastPrice(in)
		}
		out = append(out, models.Holding{
			Symbol:    sym,
			Quantity:  qty,
			AvgPrice:  avg,
			LastPrice: last,
			PnL:       round2((last - avg) * qty),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *Mock) Profile(_ context.Context) (models.Profile, error) {
	return m.profile, nil
}

func (m *Mock) Orders(_ context.Context) ([]models.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderRecord(nil), m.orders...), nil
}
