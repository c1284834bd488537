package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"trade_desk/internal/models"
	"trade_desk/internal/notify"
	"trade_desk/pkg/logger"

	"github.com/robfig/cron/v3"
)

type AutoTrader interface {
	AutoTrade(ctx context.Context, symbol string) TradeResult
}

// RunRecorder — отметка о последнем автопрогоне для /healthz.
type RunRecorder interface {
	TouchAutoRun(t time.Time)
}

// Scheduler — таймер автотрейдинга. Прогоны не сериализуются: длинный цикл может наложиться на следующий.
type Scheduler struct {
	cron   *cron.Cron
	trader AutoTrader
	sink   notify.Sink
	spec   string

	recorder RunRecorder
	now      func() time.Time

	mu      sync.Mutex
	symbols []string
	enabled atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(spec string, symbols []string, trader AutoTrader, sink notify.Sink) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(),
		trader:  trader,
		sink:    sink,
		spec:    spec,
		now:     time.Now,
		symbols: normalizeSymbols(symbols),
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("register auto-trade task %q: %w", spec, err)
	}
	return s, nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("[SCHED] started, spec=%q symbols=%v enabled=%v", s.spec, s.Symbols(), s.Enabled())
}

// Stop ждёт текущий прогон, но не дольше ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	logger.Info("[SCHED] stopped")
}

func (s *Scheduler) SetEnabled(v bool) {
	if s.enabled.Swap(v) == v {
		return
	}
	state := "disabled"
	if v {
		state = "enabled"
	}
	s.sink.AddLog(fmt.Sprintf("Auto-trading %s", state), models.SeverityInfo)
}

// SetRunRecorder задаётся до Start.
func (s *Scheduler) SetRunRecorder(r RunRecorder) { s.recorder = r }

func (s *Scheduler) Enabled() bool { return s.enabled.Load() }

func (s *Scheduler) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}

func (s *Scheduler) SetSymbols(symbols []string) {
	s.mu.Lock()
	s.symbols = normalizeSymbols(symbols)
	s.mu.Unlock()
}

// Tick — один цикл по всем символам. Выключенный планировщик ничего не делает.
func (s *Scheduler) Tick(ctx context.Context) []TradeResult {
	if !s.Enabled() {
		return nil
	}
	symbols := s.Symbols()
	out := make([]TradeResult, 0, len(symbols))
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		out = append(out, s.trader.AutoTrade(ctx, sym))
	}
	if s.recorder != nil {
		s.recorder.TouchAutoRun(s.now())
	}
	return out
}
