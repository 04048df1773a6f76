package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

type mapStore struct {
	mu      sync.Mutex
	quizzes map[string]domain.Quiz
	ttls    map[string]time.Duration
}

func newMapStore() *mapStore {
	return &mapStore{quizzes: map[string]domain.Quiz{}, ttls: map[string]time.Duration{}}
}

func (s *mapStore) Get(_ context.Context, quizID string) (domain.Quiz, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[quizID]
	return q, ok
}

func (s *mapStore) Set(_ context.Context, quiz domain.Quiz, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
	s.ttls[quiz.ID] = ttl
	return nil
}

func (s *mapStore) Delete(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quizzes, quizID)
	return nil
}

type loaderFunc func(ctx context.Context, quizID string) (domain.Quiz, error)

func (f loaderFunc) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return f(ctx, quizID)
}

func quiz(id string, kinds ...domain.QuestionKind) domain.Quiz {
	q := domain.Quiz{ID: id}
	for _, k := range kinds {
		q.Questions = append(q.Questions, domain.Question{Kind: k})
	}
	return q
}

func TestQuizCacheLoadsOnceAndStoresWithJitter(t *testing.T) {
	var calls atomic.Int32
	store := newMapStore()
	c := New(store, loaderFunc(func(_ context.Context, id string) (domain.Quiz, error) {
		calls.Add(1)
		return quiz(id, domain.KindTrueFalse), nil
	}), time.Minute)

	for i := 0; i < 3; i++ {
		_, err := c.GetQuiz(context.Background(), "quiz-1")
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), calls.Load())
	require.GreaterOrEqual(t, store.ttls["quiz-1"], time.Minute)
	require.LessOrEqual(t, store.ttls["quiz-1"], time.Minute+6*time.Second)
}

func TestQuizCacheSharesConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New(newMapStore(), loaderFunc(func(_ context.Context, id string) (domain.Quiz, error) {
		calls.Add(1)
		<-release
		return quiz(id, domain.KindFreeText), nil
	}), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetQuiz(context.Background(), "quiz-1")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestQuizCacheDoesNotStoreUnplayableQuizzes(t *testing.T) {
	store := newMapStore()
	catalog := map[string]domain.Quiz{
		"empty":  quiz("empty"),
		"broken": quiz("broken", domain.KindTrueFalse, "essay"),
	}
	c := New(store, loaderFunc(func(_ context.Context, id string) (domain.Quiz, error) {
		return catalog[id], nil
	}), time.Minute)

	for id := range catalog {
		got, err := c.GetQuiz(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, id, got.ID)
		_, cached := store.Get(context.Background(), id)
		require.False(t, cached, id)
	}
}

func TestQuizCacheDoesNotStoreLoadErrors(t *testing.T) {
	store := newMapStore()
	c := New(store, loaderFunc(func(context.Context, string) (domain.Quiz, error) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}), time.Minute)

	_, err := c.GetQuiz(context.Background(), "missing")
	require.True(t, errors.Is(err, domain.ErrQuizNotFound))
	require.Empty(t, store.quizzes)
}

func TestQuizCacheInvalidateReloads(t *testing.T) {
	version := "v1"
	c := New(newMapStore(), loaderFunc(func(_ context.Context, id string) (domain.Quiz, error) {
		q := quiz(id, domain.KindTrueFalse)
		q.Title = version
		return q, nil
	}), time.Minute)

	got, err := c.GetQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Equal(t, "v1", got.Title)

	version = "v2"
	got, _ = c.GetQuiz(context.Background(), "quiz-1")
	require.Equal(t, "v1", got.Title)

	require.NoError(t, c.Invalidate(context.Background(), "quiz-1"))
	got, _ = c.GetQuiz(context.Background(), "quiz-1")
	require.Equal(t, "v2", got.Title)
}

func TestJitterWithoutTTL(t *testing.T) {
	require.Zero(t, Jitter(0))
}
