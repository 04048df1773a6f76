package memory

import (
	"context"
	"fmt"
	"sync"

	"live-quiz-service/internal/domain"
)

// DefaultResultsLimit bounds how many sessions an in-memory sink remembers.
const DefaultResultsLimit = 500

// ResultsSink keeps the most recent finished sessions in process. It stands in for a
// durable sink when none is configured, so the oldest sessions are evicted past limit.
type ResultsSink struct {
	limit int

	mu      sync.RWMutex
	results map[string]domain.SessionResult
	order   []string
}

func NewResultsSink(limit int) *ResultsSink {
	if limit <= 0 {
		limit = DefaultResultsLimit
	}
	return &ResultsSink{limit: limit, results: make(map[string]domain.SessionResult)}
}

func (s *ResultsSink) SaveResults(_ context.Context, result domain.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[result.SessionID]; !ok {
		s.order = append(s.order, result.SessionID)
	}
	s.results[result.SessionID] = result
	for len(s.order) > s.limit {
		delete(s.results, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Scores returns the stored standings of a session, best first.
func (s *ResultsSink) Scores(_ context.Context, sessionID string) ([]domain.FinalScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no results stored for %s", domain.ErrSessionNotFound, sessionID)
	}
	out := make([]domain.FinalScore, len(result.Scores))
	copy(out, result.Scores)
	return out, nil
}
