package routing

import "sync"

// FailureRates supplies historical per-handler failure rates for classifier
// tie-breaking. A nil source falls back to lexicographic order.
type FailureRates interface {
	FailureRate(handler string) float64
}

// Stats tracks per-handler outcomes reported by the orchestrator. It is the
// only mutable input to classification and is safe for concurrent use.
type Stats struct {
	mu       sync.RWMutex
	attempts map[string]int64
	failures map[string]int64
}

// NewStats creates an empty Stats tracker.
func NewStats() *Stats {
	return &Stats{
		attempts: make(map[string]int64),
		failures: make(map[string]int64),
	}
}

// RecordSuccess counts a successful handler turn.
func (s *Stats) RecordSuccess(handler string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[handler]++
}

// RecordFailure counts a failed handler turn.
func (s *Stats) RecordFailure(handler string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[handler]++
	s.failures[handler]++
}

// FailureRate returns failures/attempts for the handler, zero when the
// handler has no history.
func (s *Stats) FailureRate(handler string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempts := s.attempts[handler]
	if attempts == 0 {
		return 0
	}
	return float64(s.failures[handler]) / float64(attempts)
}
