package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"interview-engine-service/internal/config"
	"interview-engine-service/internal/engine"
	"interview-engine-service/internal/infra/memory"
	pginfra "interview-engine-service/internal/infra/postgres"
	redisinfra "interview-engine-service/internal/infra/redis"
	"interview-engine-service/internal/infra/remote"
	"interview-engine-service/internal/logger"
	transport "interview-engine-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the interview server",
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
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	snapshotTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	staticPool := memory.NewStaticQuestionPool(memory.DefaultQuestionBanks())
	questions := buildQuestionSource(cfg, redisClient, pool, staticPool, log)
	evaluator := buildEvaluator(cfg, log)

	var store engine.SnapshotStore
	if redisClient != nil {
		store = redisinfra.NewSnapshotStore(redisClient, snapshotTTL)
	} else {
		store = memory.NewSnapshotStore()
	}

	var registry engine.CompletionSink
	if pool != nil {
		registry = pginfra.NewRegistry(pool)
	} else {
		registry = memory.NewRegistry()
	}

	factory := func(candidateID string) *engine.Engine {
		return engine.New(engine.Config{
			CandidateID:            candidateID,
			Questions:              questions,
			Evaluator:              evaluator,
			Store:                  store,
			Registry:               registry,
			PersistIntervalSeconds: cfg.Interview.PersistIntervalSeconds,
			Logger:                 log,
		})
	}
	wsHandler := transport.NewWSHandler(factory, store, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting interview service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildQuestionSource layers the question pipeline: a remote service when
// configured, cached in Redis or memory, with the static pool as the last
// fallback so a session can always activate its next question.
func buildQuestionSource(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool, staticPool *memory.StaticQuestionPool, log zerolog.Logger) engine.QuestionSource {
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)

	var cached engine.QuestionSource
	switch {
	case pool != nil && redisClient != nil:
		cached = redisinfra.NewQuestionCache(redisClient, pginfra.NewQuestionLoader(pool), questionTTL)
	case pool != nil:
		cached = memory.NewQuestionBank(pginfra.NewQuestionLoader(pool), questionTTL)
	case redisClient != nil:
		cached = redisinfra.NewQuestionCache(redisClient, staticPool, questionTTL)
	default:
		cached = memory.NewQuestionBank(staticPool, questionTTL)
	}

	source := memory.NewFallbackQuestionSource(cached, staticPool, log)
	if cfg.Questions.URL != "" {
		remoteQuestions := remote.NewQuestionClient(cfg.Questions.URL, 10*time.Second)
		return memory.NewFallbackQuestionSource(remoteQuestions, source, log)
	}
	return source
}

func buildEvaluator(cfg config.Config, log zerolog.Logger) engine.Evaluator {
	heuristic := engine.NewHeuristicEvaluator(engine.DefaultHeuristicConfig())
	var primary engine.Evaluator
	if cfg.Evaluator.URL != "" {
		timeout := config.TTLDuration(cfg.Evaluator.Timeout, 10*time.Second)
		primary = remote.NewEvaluatorClient(cfg.Evaluator.URL, cfg.Evaluator.APIKey, timeout)
	}
	return engine.NewFallbackEvaluator(primary, heuristic, 8*time.Second, log)
}
