package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/stockai/internal/capability"
	"github.com/gosuda/stockai/internal/config"
	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/llm"
	"github.com/gosuda/stockai/internal/market"
	"github.com/gosuda/stockai/internal/server"
	"github.com/gosuda/stockai/internal/store/postgres"
	redisstore "github.com/gosuda/stockai/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("STOCKAI_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("STOCKAI_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL and apply schema.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns))
	if err != nil {
		return err
	}
	defer store.Close()

	if err = store.Migrate(ctx); err != nil {
		return err
	}

	// Connect to Redis for session lifecycle events.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Market-data and news providers share one HTTP client.
	quotes := market.NewClient(cfg.Market.BaseURL, cfg.Market.Timeout)

	// Register the capability set.
	registry := engine.NewRegistry()
	registry.Register(capability.NewTrendNode(quotes))
	registry.Register(capability.NewNewsNode(quotes))
	registry.Register(capability.NewConceptSelectionNode(quotes))
	registry.Register(capability.NewLeadingStockNode(quotes))
	registry.Register(capability.NewSimilarityNode(quotes))
	registry.Register(capability.NewOverlapNode(quotes))

	// Planner collaborator: LLM-backed when a key is configured, rule-based
	// otherwise.
	var planner llm.Planner
	if cfg.LLM.APIKey != "" {
		planner = llm.NewOpenAIPlanner(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.Timeout)
	} else {
		log.Warn().Msg("no LLM API key configured; using rule-based planner")
		planner = llm.NewRulePlanner()
	}

	executor := engine.NewExecutor(registry, store.TaskResults(), cfg.Engine.StepTimeout)
	summarizer := engine.NewSummarizer(store.Sessions(), store.Messages(), pubsub)
	coordinator := engine.NewCoordinator(
		planner,
		registry,
		executor,
		summarizer,
		store.Sessions(),
		store.Messages(),
		store.TaskResults(),
		pubsub,
		engine.Limits{
			MaxSteps:   cfg.Engine.MaxSteps,
			MaxReplans: cfg.Engine.MaxReplans,
			RunTimeout: cfg.Engine.RunTimeout,
		},
	)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(ctx, cfg, store, coordinator)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
