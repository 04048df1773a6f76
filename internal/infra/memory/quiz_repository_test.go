package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/cache"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		Loader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	if err := repo.Invalidate(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestQuizStoreExpires(t *testing.T) {
	loader := &countingLoader{
		Loader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	store := NewQuizStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }
	repo := cache.New(store, loader, time.Minute)

	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected the reloaded entry only, got %d", len(store.entries))
	}
}

func TestQuizStoreWithoutTTLKeepsEntries(t *testing.T) {
	store := NewQuizStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	if err := store.Set(context.Background(), sampleQuiz(), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(365 * 24 * time.Hour)
	if _, ok := store.Get(context.Background(), "quiz-1"); !ok {
		t.Fatalf("entry without ttl expired")
	}
}

func TestQuizRepositoryUnknownQuiz(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(nil), time.Minute)
	_, err := repo.GetQuiz(context.Background(), "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

type countingLoader struct {
	cache.Loader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.Loader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				ID:      "q1",
				Kind:    domain.KindMultipleChoice,
				Prompt:  "What is 2 + 2?",
				Options: []string{"3", "4"},
				Key:     domain.AnswerKey{Index: 1},
				Points:  1,
			},
		},
	}
}
