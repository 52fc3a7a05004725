package messaging

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
)

// Stats counts published events and handler outcomes. Safe for concurrent use.
type Stats struct {
	mu     sync.Mutex
	byType map[shared.EventType]int64

	runs     atomic.Int64
	failures atomic.Int64
	busy     atomic.Int64 // total handler time in nanoseconds
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{byType: make(map[shared.EventType]int64)}
}

func (s *Stats) published(t shared.EventType) {
	s.mu.Lock()
	s.byType[t]++
	s.mu.Unlock()
}

func (s *Stats) ran(d time.Duration, err error) {
	s.runs.Add(1)
	s.busy.Add(int64(d))
	if err != nil {
		s.failures.Add(1)
	}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Published       map[shared.EventType]int64 `json:"published"`
	HandlerRuns     int64                      `json:"handler_runs"`
	HandlerFailures int64                      `json:"handler_failures"`
	MeanHandlerTime time.Duration              `json:"mean_handler_time"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	pub := maps.Clone(s.byType)
	s.mu.Unlock()

	snap := StatsSnapshot{
		Published:       pub,
		HandlerRuns:     s.runs.Load(),
		HandlerFailures: s.failures.Load(),
	}
	if snap.HandlerRuns > 0 {
		snap.MeanHandlerTime = time.Duration(s.busy.Load() / snap.HandlerRuns)
	}
	return snap
}
