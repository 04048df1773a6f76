package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/cache"
	"live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	redisinfra "live-quiz-service/internal/infra/redis"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if err := runMigrations(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			if seed {
				return seedQuizzes(cmd.Context(), cfg, logger)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "upsert the bundled sample quizzes")
	return cmd
}

func runMigrations(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := postgres.OpenBun(cfg.Postgres.URL)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info("no new migrations")
		return nil
	}
	logger.Info("migrations applied", zap.String("group", group.String()))
	return nil
}

func seedQuizzes(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := postgres.NewQuizLoader(pool)

	// Running servers would keep serving the old copy from Redis until it expired.
	var shared *cache.QuizCache
	if cfg.Redis.Addr != "" {
		client, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		shared = redisinfra.NewQuizRepository(client, loader, 0)
	}

	for id, quiz := range sampleQuizzes() {
		if err := loader.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
		if shared != nil {
			if err := shared.Invalidate(ctx, id); err != nil {
				return fmt.Errorf("invalidate %s: %w", id, err)
			}
		}
		logger.Info("quiz seeded", zap.String("quiz_id", id), zap.Int("questions", len(quiz.Questions)))
	}
	return nil
}
