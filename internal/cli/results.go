package cli

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/objectstore"
	"live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
)

type resultsStack struct {
	publisher *app.ResultsPublisher
	reader    app.ResultsReader // nil when nothing readable is configured
	closers   []func()
}

func (s *resultsStack) Close() {
	for _, c := range s.closers {
		c()
	}
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// buildServerResults picks how the server hands off finished sessions. With a queue
// configured it only enqueues; otherwise it writes the durable sinks itself, falling
// back to a bounded in-process sink.
func buildServerResults(ctx context.Context, cfg config.Config, redisClient *redis.Client, logger *zap.Logger) (*resultsStack, error) {
	if cfg.Results.RedisQueue == "" {
		stack, err := buildDurableResults(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if len(stack.publisher.Sinks()) == 0 {
			sink := memory.NewResultsSink(cfg.Results.MemoryLimit)
			stack.publisher.Add("memory", sink)
			stack.reader = sink
		}
		return stack, nil
	}

	if redisClient == nil {
		return nil, errors.New("results.redisQueue needs redis.addr")
	}
	stack := &resultsStack{publisher: newPublisher(cfg, logger).
		Add("redis", redisinfra.NewResultsQueue(redisClient, cfg.Results.RedisQueue, logger))}
	if cfg.Results.Postgres {
		if cfg.Postgres.URL == "" {
			return nil, errors.New("results.postgres needs postgres.url")
		}
		db := postgres.OpenBun(cfg.Postgres.URL)
		stack.closers = append(stack.closers, func() { _ = db.Close() })
		stack.reader = postgres.NewResultsSink(db)
	}
	return stack, nil
}

// buildDurableResults wires the Postgres and S3 sinks. The worker delivers through it.
func buildDurableResults(ctx context.Context, cfg config.Config, logger *zap.Logger) (*resultsStack, error) {
	stack := &resultsStack{publisher: newPublisher(cfg, logger)}

	if cfg.Results.Postgres {
		if cfg.Postgres.URL == "" {
			return nil, errors.New("results.postgres needs postgres.url")
		}
		db := postgres.OpenBun(cfg.Postgres.URL)
		stack.closers = append(stack.closers, func() { _ = db.Close() })
		sink := postgres.NewResultsSink(db)
		stack.publisher.Add("postgres", sink)
		stack.reader = sink
	}

	if cfg.Results.S3.Bucket != "" {
		archive, err := objectstore.NewResultsArchive(ctx, objectstore.Config{
			Region:          cfg.Results.S3.Region,
			Bucket:          cfg.Results.S3.Bucket,
			Prefix:          cfg.Results.S3.Prefix,
			AccessKeyID:     cfg.Results.S3.AccessKeyID,
			SecretAccessKey: cfg.Results.S3.SecretAccessKey,
		}, logger)
		if err != nil {
			stack.Close()
			return nil, err
		}
		stack.publisher.Add("s3", archive)
	}
	return stack, nil
}

func newPublisher(cfg config.Config, logger *zap.Logger) *app.ResultsPublisher {
	return app.NewResultsPublisher(logger, config.TTLDuration(cfg.Results.Timeout, 10*time.Second))
}
