// Package cache puts a read-through cache in front of the quiz catalog.
package cache

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// Loader fetches quiz content from the catalog of record (Postgres JSONB, static fixtures).
type Loader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Store keeps cached quizzes between loads. A ttl of zero means no expiry.
type Store interface {
	Get(ctx context.Context, quizID string) (domain.Quiz, bool)
	Set(ctx context.Context, quiz domain.Quiz, ttl time.Duration) error
	Delete(ctx context.Context, quizID string) error
}

// QuizCache serves quizzes from a Store and falls back to the Loader on a miss.
// Concurrent misses for one quiz share a single load.
//
// Only quizzes a session can be opened from are stored. An empty quiz or one with an
// unknown question kind is still returned, but the next lookup goes back to the
// catalog, so a fix there is picked up without waiting out the TTL.
type QuizCache struct {
	store  Store
	loader Loader
	ttl    time.Duration
	sf     singleflight.Group
}

func New(store Store, loader Loader, ttl time.Duration) *QuizCache {
	return &QuizCache{store: store, loader: loader, ttl: ttl}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.store.Get(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := c.store.Get(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := c.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if playable(quiz) {
			// a failed write only costs another load
			_ = c.store.Set(ctx, quiz, Jitter(c.ttl))
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the cached copy so the next lookup reloads it from the catalog.
func (c *QuizCache) Invalidate(ctx context.Context, quizID string) error {
	c.sf.Forget(quizID)
	return c.store.Delete(ctx, quizID)
}

// Jitter adds up to 10% to ttl so entries loaded together do not expire together.
func Jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(rand.Int63n(int64(ttl)/10+1))
}

func playable(quiz domain.Quiz) bool {
	if len(quiz.Questions) == 0 {
		return false
	}
	for _, q := range quiz.Questions {
		if !q.Kind.Valid() {
			return false
		}
	}
	return true
}
