package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/cache"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret not configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = openRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader cache.Loader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = postgres.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes *cache.QuizCache
	if redisClient != nil {
		quizzes = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	var rooms app.RoomRepository
	if redisClient != nil {
		rooms = redisinfra.NewRoomStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour), logger)
	} else {
		rooms = memory.NewRoomStore()
	}

	results, err := buildServerResults(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer results.Close()
	publisher := results.publisher

	manager := app.NewManager(rooms, quizzes, app.NewRegistry(), publisher, engineConfig(cfg.Engine), logger)
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))

	routes := transport.RouterConfig{
		Manager:    manager,
		Quizzes:    quizzes,
		JWT:        jwtService,
		Logger:     logger,
		SendBuffer: cfg.Engine.SendBuffer,
	}
	if results.reader != nil {
		routes.Results = results.reader
	}
	router := transport.NewRouter(routes)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz service",
			zap.String("addr", server.Addr),
			zap.Strings("results_sinks", publisher.Sinks()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		manager.Shutdown()
		publisher.Wait()
		return err
	})
	return g.Wait()
}

func engineConfig(cfg config.EngineConfig) app.EngineConfig {
	return app.EngineConfig{
		Room: app.RoomConfig{
			DefaultTimeLimit: config.TTLDuration(cfg.DefaultTimeLimit, 30*time.Second),
			StartDelay:       config.TTLDuration(cfg.StartDelay, 0),
			ReviewDelay:      config.TTLDuration(cfg.ReviewDelay, 0),
		},
		SessionGrace: config.TTLDuration(cfg.SessionGrace, 5*time.Minute),
		MultiSession: cfg.MultiSession,
	}
}
