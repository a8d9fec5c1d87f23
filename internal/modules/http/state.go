package http

import (
	"sync/atomic"
	"time"
)

// State — готовность front door и счётчики для /health.
type State struct {
	ready     atomic.Bool
	served    atomic.Int64
	failed    atomic.Int64
	startedAt time.Time
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// Observe учитывает ответ; 5xx считаются отдельно.
func (s *State) Observe(code int) {
	s.served.Add(1)
	if code >= 500 {
		s.failed.Add(1)
	}
}

type Counters struct {
	Served int64 `json:"served"`
	Failed int64 `json:"failed"`
}

func (s *State) Counters() Counters {
	return Counters{Served: s.served.Load(), Failed: s.failed.Load()}
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
