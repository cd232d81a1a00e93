package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/api"
	"trading-signal-engine/internal/cache"
	"trading-signal-engine/internal/database"
	"trading-signal-engine/internal/events"
	"trading-signal-engine/internal/logging"
	"trading-signal-engine/internal/providers"
	"trading-signal-engine/internal/secrets"
	sig "trading-signal-engine/internal/signal"
	"trading-signal-engine/internal/vectorstore"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "generate-config" {
		if err := config.GenerateSampleConfig("config.json"); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config.json: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote config.json")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
		Output: cfg.LoggingConfig.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	// Postgres is the system of record for patterns and signals.
	db, err := database.NewDB(database.Config{
		DSN:      cfg.DatabaseConfig.DSN(),
		MaxConns: int32(cfg.DatabaseConfig.MaxConns),
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	repo := database.NewRepository(db)

	// Redis caching is optional and the service degrades without it.
	var cacheSvc *cache.CacheService
	var sigCache *cache.SignalCache
	if cfg.RedisConfig.Enabled {
		cacheSvc, err = cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("cache unavailable, continuing without it")
		} else {
			defer cacheSvc.Close()
			sigCache = cache.NewSignalCache(cacheSvc, time.Duration(cfg.RedisConfig.TTL)*time.Second)
		}
	}

	// The ANN index narrows pattern candidates; Postgres remains the
	// fallback path when Milvus is disabled or unreachable.
	var patterns sig.PatternStore = repo
	if cfg.MilvusConfig.Enabled {
		milvus, err := vectorstore.NewClient(ctx, vectorstore.Config{
			Address:    cfg.MilvusConfig.Address,
			Collection: cfg.MilvusConfig.Collection,
			Dimension:  sig.EmbeddingDim,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("milvus unavailable, pattern search uses full scans")
		} else {
			defer milvus.Close()
			patterns = vectorstore.NewPatternIndex(milvus, repo, repo, cfg.MilvusConfig.TopK, logger)
		}
	}

	providerCfg, err := resolveProviderCredentials(ctx, cfg, logger)
	if err != nil {
		return err
	}

	timeout := time.Duration(cfg.ProvidersConfig.RequestTimeout) * time.Second
	technical := providers.NewTechnicalClient(providers.Config{
		BaseURL: providerCfg.TechnicalBaseURL,
		APIKey:  providerCfg.TechnicalAPIKey,
		Timeout: timeout,
	}, logger)
	sentiment := providers.NewSentimentClient(providers.Config{
		BaseURL: providerCfg.SentimentBaseURL,
		APIKey:  providerCfg.SentimentAPIKey,
		Timeout: timeout,
	}, logger)

	eventBus := events.NewEventBus()

	engine, err := sig.NewEngine(sig.EngineConfig{
		Similarity: sig.SimilarityConfig{
			MinSimilarity: cfg.EngineConfig.MinSimilarity,
			TopK:          cfg.EngineConfig.PatternTopK,
		},
		PatternFetchLimit: cfg.EngineConfig.PatternFetchLimit,
		BatchChunkSize:    cfg.EngineConfig.BatchChunkSize,
		BatchChunkDelay:   cfg.EngineConfig.BatchChunkDelay,
		AnalysisTimeout:   cfg.EngineConfig.AnalysisTimeout,
	}, sig.Deps{
		Technical: technical,
		Sentiment: sentiment,
		Risk:      providers.NewRiskAnalyzer(),
		Patterns:  patterns,
		Signals:   repo,
		Publisher: eventBus,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("building signal engine: %w", err)
	}

	vaultClient, err := secrets.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Warn().Err(err).Msg("vault unavailable for health reporting")
	}

	server, err := api.NewServer(cfg.ServerConfig, api.ServerDeps{
		Service:     engine,
		History:     repo,
		SignalCache: sigCache,
		Cache:       cacheSvc,
		DB:          db,
		Secrets:     vaultClient,
		Events:      eventBus,
		Metrics:     api.NewMetricsRecorder(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("building HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-quit:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// resolveProviderCredentials overlays Vault-held API keys on the static
// configuration. Vault wins when it holds a credential for a provider.
func resolveProviderCredentials(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (config.ProvidersConfig, error) {
	out := cfg.ProvidersConfig
	if !cfg.VaultConfig.Enabled {
		return out, nil
	}

	client, err := secrets.NewClient(cfg.VaultConfig)
	if err != nil {
		return out, fmt.Errorf("connecting to vault: %w", err)
	}

	if cred, err := client.Get(ctx, "technical"); err == nil {
		out.TechnicalAPIKey = cred.APIKey
		if cred.BaseURL != "" {
			out.TechnicalBaseURL = cred.BaseURL
		}
	} else {
		logger.Warn().Err(err).Msg("no vault credential for technical provider, using config value")
	}
	if cred, err := client.Get(ctx, "sentiment"); err == nil {
		out.SentimentAPIKey = cred.APIKey
		if cred.BaseURL != "" {
			out.SentimentBaseURL = cred.BaseURL
		}
	} else {
		logger.Warn().Err(err).Msg("no vault credential for sentiment provider, using config value")
	}
	return out, nil
}
