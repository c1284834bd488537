package market

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // биржевые зоны есть даже в scratch-образе
)

// Hours — расписание торговой сессии биржи. Крипта торгуется всегда.
type Hours struct {
	loc            *time.Location
	openMin        int // минуты от полуночи
	closeMin       int
	cryptoSuffixes []string
}

func NewHours(timezone, open, close string, cryptoSuffixes []string) (*Hours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", timezone, err)
	}
	o, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("market open: %w", err)
	}
	c, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("market close: %w", err)
	}
	if c <= o {
		return nil, fmt.Errorf("market close %s must be after open %s", close, open)
	}
	sfx := make([]string, 0, len(cryptoSuffixes))
	for _, s := range cryptoSuffixes {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			sfx = append(sfx, s)
		}
	}
	return &Hours{loc: loc, openMin: o, closeMin: c, cryptoSuffixes: sfx}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsCrypto — символ относится к крипто-классу (торгуется 24/7, свой порог уверенности).
func (h *Hours) IsCrypto(symbol string) bool {
	s := strings.ToUpper(symbol)
	for _, sfx := range h.cryptoSuffixes {
		if strings.HasSuffix(s, sfx) {
			return true
		}
	}
	return false
}

// IsOpen: пн-пт, [open, close) по времени биржи.
func (h *Hours) IsOpen(symbol string, now time.Time) bool {
	if h.IsCrypto(symbol) {
		return true
	}
	local := now.In(h.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= h.openMin && m < h.closeMin
}
