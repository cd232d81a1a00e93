package signal

import (
	"sync"
	"time"
)

// EngineStats tracks running engine statistics. It is owned by the engine
// instance and updated through explicit methods; there is no global state.
type EngineStats struct {
	mu sync.RWMutex

	generated     int
	failed        int
	actionCounts  map[Action]int
	confidenceSum float64
	lastGenerated time.Time
}

// NewEngineStats creates an empty stats tracker.
func NewEngineStats() *EngineStats {
	return &EngineStats{actionCounts: make(map[Action]int)}
}

// RecordSignal records one successfully generated signal.
func (s *EngineStats) RecordSignal(sig *Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated++
	s.actionCounts[sig.Action]++
	s.confidenceSum += sig.Confidence
	s.lastGenerated = sig.GeneratedAt
}

// RecordFailure records one failed generation attempt.
func (s *EngineStats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

// StatsSnapshot is an exported copy of the running statistics.
type StatsSnapshot struct {
	SignalsGenerated  int            `json:"signals_generated"`
	Failures          int            `json:"failures"`
	AverageConfidence float64        `json:"average_confidence"`
	ActionBreakdown   map[Action]int `json:"action_breakdown"`
	LastGeneratedAt   time.Time      `json:"last_generated_at"`
}

// Snapshot exports a copy of the current statistics.
func (s *EngineStats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	breakdown := make(map[Action]int, len(s.actionCounts))
	for k, v := range s.actionCounts {
		breakdown[k] = v
	}
	avg := 0.0
	if s.generated > 0 {
		avg = s.confidenceSum / float64(s.generated)
	}
	return StatsSnapshot{
		SignalsGenerated:  s.generated,
		Failures:          s.failed,
		AverageConfidence: avg,
		ActionBreakdown:   breakdown,
		LastGeneratedAt:   s.lastGenerated,
	}
}

// Reset clears all counters.
func (s *EngineStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated = 0
	s.failed = 0
	s.confidenceSum = 0
	s.actionCounts = make(map[Action]int)
	s.lastGenerated = time.Time{}
}
