package service

import (
	"sync/atomic"
	"time"
)

// State — состояние процесса для /readyz и /healthz.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastAutoRunUnix atomic.Int64 // unix seconds
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) TouchAutoRun(t time.Time) { s.lastAutoRunUnix.Store(t.Unix()) }
func (s *State) LastAutoRun() time.Time {
	u := s.lastAutoRunUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
