package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"racha-core/internal/adapter/api"
	"racha-core/internal/adapter/client"
	"racha-core/internal/adapter/store"
	"racha-core/internal/config"
	"racha-core/internal/domain/repository"
	"racha-core/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sweepInterval = 10 * time.Minute

func main() {
	cfg, loadedFile, err := config.Load(".env.dev")
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	if !loadedFile {
		logger.Warn(".env.dev file not found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Exact cache and budget ledger: Redis when configured, process memory otherwise
	var (
		cache  repository.CacheStore
		ledger repository.BudgetLedger
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cache = store.NewRedisCache(rdb, cfg.CacheTTL)
		ledger = store.NewRedisLedger(rdb, cfg.DailyBudgetBRL)
	} else {
		logger.Warn("REDIS_ADDR not set, cache and budget ledger are process-local")
		mem := store.NewMemoryCache(cfg.CacheTTL)
		go sweep(ctx, mem, logger)
		cache = mem
		ledger = store.NewMemoryLedger(cfg.DailyBudgetBRL)
	}

	genaiClient, err := client.NewGenAIClient(ctx, cfg.GeminiAPIKey, cfg.GoogleProject, cfg.GoogleLocation)
	if err != nil {
		logger.Fatal("failed to init genai client", zap.Error(err))
	}

	models := client.NewGeminiClientFromClient(genaiClient, cfg.Tiers)
	provider := usecase.NewResilientProvider(models, cfg.AITimeout, logger)
	router := usecase.NewModelRouter(provider, ledger, cfg.Tiers, cfg.ConfidenceThreshold, logger)

	// Semantic cache is optional
	var (
		semantic repository.SemanticCache
		embedder repository.Embedder
	)
	if cfg.QdrantHost != "" {
		qClient, err := qdrant.NewClient(&qdrant.Config{
			Host: cfg.QdrantHost,
			Port: cfg.QdrantPort,
		})
		if err != nil {
			logger.Fatal("failed to connect to qdrant", zap.Error(err))
		}
		vectorStore := store.NewQdrantStore(qClient, cfg.QdrantCollection, cfg.SemanticThreshold, cfg.CacheTTL, logger)
		if err := vectorStore.InitCollection(ctx, cfg.EmbeddingDim); err != nil {
			logger.Fatal("failed to init qdrant collection", zap.Error(err))
		}
		emb := client.NewEmbedderFromClient(genaiClient, cfg.EmbeddingModel, cfg.EmbeddingDim)
		semantic, embedder = vectorStore, emb

		go func() {
			warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := emb.CreateEmbedding(warmCtx, "warmup"); err != nil {
				logger.Warn("embedder warm-up failed", zap.Error(err))
				return
			}
			logger.Info("embedder warm")
		}()
	}

	orchestrator := usecase.NewOrchestrator(usecase.Deps{
		Router:   router,
		Cache:    cache,
		Ledger:   ledger,
		Semantic: semantic,
		Embedder: embedder,
		Log:      logger,
	}, usecase.Settings{
		Threshold: cfg.ConfidenceThreshold,
		// two tiers, each with one retry
		BackgroundTimeout: 4*cfg.AITimeout + time.Second,
		Location:          cfg.BudgetLocation,
	})

	app := fiber.New(fiber.Config{
		AppName: "Racha Core",
	})
	handler := api.NewInterpretHandler(orchestrator, cfg.RequestTimeout, logger)
	api.SetupRouter(app, handler, api.BuildInfo{Version: cfg.AppVersion, Env: cfg.Env})

	go func() {
		logger.Info("racha-core listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	// let paid calls in flight land in the cache
	orchestrator.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Production() {
		zc = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	return zc.Build(zap.Fields(zap.String("service", "racha-core")))
}

func sweep(ctx context.Context, cache *store.MemoryCache, logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cache.Sweep(); n > 0 {
				logger.Debug("swept expired cache entries", zap.Int("evicted", n))
			}
		}
	}
}
