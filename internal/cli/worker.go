package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"live-quiz-service/internal/config"
	redisinfra "live-quiz-service/internal/infra/redis"
)

// NewWorkerCmd drains the Redis results queue into the durable sinks.
func NewWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued session results to Postgres and S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), *configPath)
		},
	}
}

func runWorker(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Redis.Addr == "" {
		return errors.New("worker needs redis.addr")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := openRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	sinks, err := buildDurableResults(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sinks.Close()
	if len(sinks.publisher.Sinks()) == 0 {
		return errors.New("worker needs results.postgres or results.s3.bucket")
	}

	queue := redisinfra.NewResultsQueue(client, cfg.Results.RedisQueue, logger)
	worker := redisinfra.NewResultsWorker(queue, sinks.publisher, logger)
	worker.RetryBackoff = config.TTLDuration(cfg.Results.RetryBackoff, 2*time.Second)

	logger.Info("results worker started",
		zap.Strings("results_sinks", sinks.publisher.Sinks()),
		zap.String("dead_letter", queue.DeadKey()))
	worker.Run(ctx)
	return nil
}
