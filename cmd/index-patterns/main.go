// Command index-patterns backfills the Milvus ANN collection from the
// historical pattern corpus in PostgreSQL. Run it once after enabling Milvus
// on an existing deployment, or to rebuild a dropped collection.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/database"
	"trading-signal-engine/internal/logging"
	"trading-signal-engine/internal/signal"
	"trading-signal-engine/internal/vectorstore"
)

const pageSize = 500

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewDB(database.Config{
		DSN:      cfg.DatabaseConfig.DSN(),
		MaxConns: int32(cfg.DatabaseConfig.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()
	repo := database.NewRepository(db)

	milvus, err := vectorstore.NewClient(ctx, vectorstore.Config{
		Address:    cfg.MilvusConfig.Address,
		Collection: cfg.MilvusConfig.Collection,
		Dimension:  signal.EmbeddingDim,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("milvus connection failed")
	}
	defer milvus.Close()

	start := time.Now()
	total := 0
	afterID := ""

	for {
		patterns, err := repo.SelectPatternsAfter(ctx, afterID, pageSize)
		if err != nil {
			logger.Fatal().Err(err).Msg("reading pattern page failed")
		}
		if len(patterns) == 0 {
			break
		}

		vectors := make([]*vectorstore.PatternVector, 0, len(patterns))
		for _, p := range patterns {
			if len(p.Embedding) != signal.EmbeddingDim {
				logger.Warn().Str("pattern_id", p.ID).
					Int("dim", len(p.Embedding)).
					Msg("skipping pattern with unexpected embedding size")
				continue
			}
			vectors = append(vectors, &vectorstore.PatternVector{
				PatternID:  p.ID,
				Embedding:  toFloat32(p.Embedding),
				Ticker:     p.Ticker,
				Horizon:    string(p.Snapshot.Horizon),
				ObservedAt: p.Timestamp,
			})
		}

		if err := milvus.InsertBatch(ctx, vectors); err != nil {
			logger.Fatal().Err(err).Msg("milvus insert failed")
		}

		total += len(vectors)
		afterID = patterns[len(patterns)-1].ID
		logger.Info().Int("indexed", total).Msg("progress")
	}

	if err := milvus.Flush(ctx); err != nil {
		logger.Fatal().Err(err).Msg("milvus flush failed")
	}

	logger.Info().
		Int("patterns", total).
		Dur("elapsed", time.Since(start)).
		Msg("backfill complete")
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
