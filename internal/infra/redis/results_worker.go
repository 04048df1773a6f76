package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	defaultPollTimeout  = 5 * time.Second
	defaultRetryBackoff = 2 * time.Second
)

// ResultsWorker drains a ResultsQueue into a durable sink.
type ResultsWorker struct {
	queue  *ResultsQueue
	sink   app.ResultsSink
	logger *zap.Logger

	PollTimeout  time.Duration
	RetryBackoff time.Duration
}

func NewResultsWorker(queue *ResultsQueue, sink app.ResultsSink, logger *zap.Logger) *ResultsWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsWorker{
		queue:        queue,
		sink:         sink,
		logger:       logger,
		PollTimeout:  defaultPollTimeout,
		RetryBackoff: defaultRetryBackoff,
	}
}

// Process delivers one job to the sink.
func (w *ResultsWorker) Process(ctx context.Context, job *Job) error {
	if job.Type != JobTypeSessionResults {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var result domain.SessionResult
	if err := json.Unmarshal(job.Payload, &result); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := w.sink.SaveResults(ctx, result); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	w.logger.Info("results job delivered", zap.String("job_id", job.ID), zap.String("session_id", result.SessionID))
	return nil
}

// Run dequeues until ctx is cancelled. Failed jobs go back through Retry.
func (w *ResultsWorker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := w.queue.Dequeue(ctx, w.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Warn("dequeue results job", zap.Error(err))
			w.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		if err := w.Process(ctx, job); err != nil {
			w.logger.Error("results job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if err := w.queue.Retry(context.WithoutCancel(ctx), job); err != nil {
				w.logger.Error("requeue results job", zap.String("job_id", job.ID), zap.Error(err))
			}
			w.sleep(ctx)
		}
	}
	w.logger.Info("results worker stopping")
}

func (w *ResultsWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.RetryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
