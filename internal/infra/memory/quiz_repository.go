package memory

import (
	"context"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/cache"
)

// NewQuizRepository caches quizzes in process in front of loader.
func NewQuizRepository(loader cache.Loader, ttl time.Duration) *cache.QuizCache {
	return cache.New(NewQuizStore(), loader, ttl)
}

// QuizStore is an in-process cache.Store. Expired entries are dropped on read.
// Cached quizzes are shared between rooms and must be treated as read-only.
type QuizStore struct {
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]storedQuiz
}

type storedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time // zero means no expiry
}

func NewQuizStore() *QuizStore {
	return &QuizStore{clock: time.Now, entries: make(map[string]storedQuiz)}
}

func (s *QuizStore) Get(_ context.Context, quizID string) (domain.Quiz, bool) {
	s.mu.RLock()
	entry, ok := s.entries[quizID]
	s.mu.RUnlock()
	if !ok {
		return domain.Quiz{}, false
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.clock()) {
		s.mu.Lock()
		if current, ok := s.entries[quizID]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(s.entries, quizID)
		}
		s.mu.Unlock()
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (s *QuizStore) Set(_ context.Context, quiz domain.Quiz, ttl time.Duration) error {
	entry := storedQuiz{quiz: quiz}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}
	s.mu.Lock()
	s.entries[quiz.ID] = entry
	s.mu.Unlock()
	return nil
}

func (s *QuizStore) Delete(_ context.Context, quizID string) error {
	s.mu.Lock()
	delete(s.entries, quizID)
	s.mu.Unlock()
	return nil
}

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
