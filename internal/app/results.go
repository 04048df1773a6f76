package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// ResultsSink persists a finished session's scores (Postgres, Redis queue, S3, memory).
type ResultsSink interface {
	SaveResults(ctx context.Context, result domain.SessionResult) error
}

// ResultsReader reads back the stored standings of a finished session, best first.
// A session without stored results is domain.ErrSessionNotFound.
type ResultsReader interface {
	Scores(ctx context.Context, sessionID string) ([]domain.FinalScore, error)
}

// ResultsHandoff receives final results from a completed room. Publish must not block.
type ResultsHandoff interface {
	Publish(result domain.SessionResult)
}

type namedSink struct {
	name string
	sink ResultsSink
}

// ResultsPublisher delivers results to every registered sink. Failures are logged
// here; retrying is left to whoever feeds it (see the results worker).
type ResultsPublisher struct {
	logger  *zap.Logger
	timeout time.Duration
	sinks   []namedSink
	wg      sync.WaitGroup
}

func NewResultsPublisher(logger *zap.Logger, timeout time.Duration) *ResultsPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ResultsPublisher{logger: logger, timeout: timeout}
}

// Add registers a sink. It is not safe to call concurrently with Publish.
func (p *ResultsPublisher) Add(name string, sink ResultsSink) *ResultsPublisher {
	p.sinks = append(p.sinks, namedSink{name: name, sink: sink})
	return p
}

// Sinks returns the registered sink names.
func (p *ResultsPublisher) Sinks() []string {
	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.name)
	}
	return names
}

// Publish delivers result to every sink in the background.
func (p *ResultsPublisher) Publish(result domain.SessionResult) {
	for _, s := range p.sinks {
		p.wg.Add(1)
		go func(s namedSink) {
			defer p.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			defer cancel()
			_ = p.deliver(ctx, s, result)
		}(s)
	}
}

// SaveResults delivers result to every sink and waits. The returned error joins every
// sink failure, so the publisher itself can serve as one ResultsSink.
func (p *ResultsPublisher) SaveResults(ctx context.Context, result domain.SessionResult) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	errs := make([]error, len(p.sinks))
	var wg sync.WaitGroup
	for i, s := range p.sinks {
		wg.Add(1)
		go func(i int, s namedSink) {
			defer wg.Done()
			errs[i] = p.deliver(ctx, s, result)
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (p *ResultsPublisher) deliver(ctx context.Context, s namedSink, result domain.SessionResult) error {
	if err := s.sink.SaveResults(ctx, result); err != nil {
		p.logger.Error("persist session results",
			zap.String("sink", s.name),
			zap.String("session_id", result.SessionID),
			zap.Error(err))
		return fmt.Errorf("%s: %w", s.name, err)
	}
	p.logger.Info("session results persisted",
		zap.String("sink", s.name),
		zap.String("session_id", result.SessionID),
		zap.Int("participants", len(result.Scores)))
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (p *ResultsPublisher) Wait() {
	p.wg.Wait()
}
