package main

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/howl/internal/cache/redis"
	"github.com/davidbz/howl/internal/characterize"
	"github.com/davidbz/howl/internal/config"
	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/engine"
	"github.com/davidbz/howl/internal/http"
	"github.com/davidbz/howl/internal/http/middleware"
	"github.com/davidbz/howl/internal/ledger"
	"github.com/davidbz/howl/internal/normalize"
	"github.com/davidbz/howl/internal/observability"
	"github.com/davidbz/howl/internal/orchestrator"
	"github.com/davidbz/howl/internal/provider/gemini"
	"github.com/davidbz/howl/internal/provider/naive"
	"github.com/davidbz/howl/internal/provider/openai"
	"github.com/davidbz/howl/internal/provider/registry"
	"github.com/davidbz/howl/internal/routing"
	"github.com/davidbz/howl/internal/structure"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(logger *zap.Logger, server *http.Server) {
		defer func() { _ = logger.Sync() }()

		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func() domain.EventPublisher {
		return observability.NewEventBus()
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Register providers with registry (invoked for side effects). Adapters
	// without a credential are registered anyway and report unavailable, so
	// routing skips them.
	if err := container.Invoke(func(reg domain.ProviderRegistry, cfg *config.Config) error {
		ctx := context.Background()

		if err := reg.Register(ctx, openai.NewProvider(cfg.OpenAI)); err != nil {
			return fmt.Errorf("failed to register OpenAI provider: %w", err)
		}

		geminiProvider, err := gemini.NewProvider(ctx, cfg.Gemini)
		if err != nil {
			return fmt.Errorf("failed to build Gemini provider: %w", err)
		}
		if err := reg.Register(ctx, geminiProvider); err != nil {
			return fmt.Errorf("failed to register Gemini provider: %w", err)
		}

		// The baseline never needs configuration; it keeps every chain non-empty.
		if err := reg.Register(ctx, naive.NewProvider()); err != nil {
			return fmt.Errorf("failed to register baseline provider: %w", err)
		}

		return nil
	}); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// Core pipeline
	if err := container.Provide(normalize.NewNormalizer); err != nil {
		log.Fatalf("Failed to provide normalizer: %v", err)
	}
	if err := container.Provide(characterize.NewCharacterizer); err != nil {
		log.Fatalf("Failed to provide characterizer: %v", err)
	}
	if err := container.Provide(func() domain.UsageLedger {
		return ledger.NewLedger()
	}); err != nil {
		log.Fatalf("Failed to provide usage ledger: %v", err)
	}
	if err := container.Provide(func(reg domain.ProviderRegistry, cfg *config.RoutingConfig) domain.Router {
		return routing.NewPolicy(reg, routing.Config{
			SmallMaxChars:  cfg.SmallMaxChars,
			MediumMaxChars: cfg.MediumMaxChars,
		})
	}); err != nil {
		log.Fatalf("Failed to provide routing policy: %v", err)
	}
	if err := container.Provide(func(
		reg domain.ProviderRegistry,
		usage domain.UsageLedger,
		events domain.EventPublisher,
		cfg *config.EngineConfig,
	) *engine.Engine {
		return engine.NewEngine(reg, usage, events, engine.Config{
			AttemptTimeout: time.Duration(cfg.AttemptTimeout) * time.Second,
			RetryBackoff:   time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
		})
	}); err != nil {
		log.Fatalf("Failed to provide execution engine: %v", err)
	}
	if err := container.Provide(func(
		router domain.Router,
		eng *engine.Engine,
		normalizer *normalize.Normalizer,
		events domain.EventPublisher,
		cfg *config.StructureConfig,
	) *structure.Scorer {
		completer := orchestrator.NewChainCompleter(router, eng)
		return structure.NewScorer(completer, normalizer, events, structure.Config{
			WeakHeadingsScore: cfg.WeakHeadingsScore,
			CloseMargin:       cfg.CloseMargin,
		})
	}); err != nil {
		log.Fatalf("Failed to provide structure scorer: %v", err)
	}

	// Result cache: disabled unless a Redis address is configured.
	if err := container.Provide(func(cfg *config.RedisConfig) domain.ResultCache {
		if cfg.Addr == "" {
			return nil
		}
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return redis.NewResultCache(client)
	}); err != nil {
		log.Fatalf("Failed to provide result cache: %v", err)
	}

	// Orchestrator
	if err := container.Provide(func(
		characterizer *characterize.Characterizer,
		scorer *structure.Scorer,
		router domain.Router,
		eng *engine.Engine,
		normalizer *normalize.Normalizer,
		cache domain.ResultCache,
		usage domain.UsageLedger,
		cfg *config.OrchestratorConfig,
	) *orchestrator.Orchestrator {
		return orchestrator.NewOrchestrator(characterizer, scorer, router, eng, normalizer, cache, usage, orchestrator.Config{
			CacheTTL:          time.Duration(cfg.CacheTTLSeconds) * time.Second,
			MaxParallelChunks: cfg.MaxParallelChunks,
		})
	}); err != nil {
		log.Fatalf("Failed to provide orchestrator: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(func(cfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(cfg)
	}); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}
