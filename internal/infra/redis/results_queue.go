package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// QueueResults is the Redis list key downstream workers consume finished sessions from.
const QueueResults = "quiz:results"

// JobTypeSessionResults identifies a results job.
const JobTypeSessionResults = "session_results"

// MaxAttempts is how many deliveries a job gets before it moves to the dead-letter list.
const MaxAttempts = 3

// Job is the queue envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// ResultsQueue hands completed sessions to background workers via RPUSH.
type ResultsQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

func NewResultsQueue(client *redis.Client, key string, logger *zap.Logger) *ResultsQueue {
	if key == "" {
		key = QueueResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsQueue{client: client, key: key, logger: logger}
}

func (q *ResultsQueue) SaveResults(ctx context.Context, result domain.SessionResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.NewString(),
		Type:      JobTypeSessionResults,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued results job", zap.String("job_id", job.ID), zap.String("session_id", result.SessionID))
	return nil
}

// Dequeue blocks up to timeout for the next job. It returns nil without error on timeout.
func (q *ResultsQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", res[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// DeadKey is the list jobs land on once MaxAttempts is reached.
func (q *ResultsQueue) DeadKey() string {
	return q.key + ":dead"
}

// Retry re-enqueues job with its attempt incremented, or dead-letters it at MaxAttempts.
func (q *ResultsQueue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if job.Attempt >= MaxAttempts {
		if err := q.client.RPush(ctx, q.DeadKey(), raw).Err(); err != nil {
			return fmt.Errorf("rpush dead letter: %w", err)
		}
		q.logger.Warn("results job dead-lettered", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Info("results job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
