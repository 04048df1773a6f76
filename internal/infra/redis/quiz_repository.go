package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/cache"
)

// NewQuizRepository caches quizzes in Redis in front of loader, so every instance
// shares one warm catalog.
func NewQuizRepository(client *redis.Client, loader cache.Loader, ttl time.Duration) *cache.QuizCache {
	return cache.New(NewQuizStore(client), loader, ttl)
}

// QuizStore is a cache.Store keeping each quiz as JSON: SET quiz:{quizID} {json} EX ttl.
type QuizStore struct {
	client *redis.Client
}

func NewQuizStore(client *redis.Client) *QuizStore {
	return &QuizStore{client: client}
}

// Get treats unreadable entries as misses.
func (s *QuizStore) Get(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := s.client.Get(ctx, s.key(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (s *QuizStore) Set(ctx context.Context, quiz domain.Quiz, ttl time.Duration) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(quiz.ID), raw, ttl).Err()
}

func (s *QuizStore) Delete(ctx context.Context, quizID string) error {
	return s.client.Del(ctx, s.key(quizID)).Err()
}

func (s *QuizStore) key(quizID string) string {
	return "quiz:" + quizID
}

// IsNil reports whether err is a Redis miss.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
