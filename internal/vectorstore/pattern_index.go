package vectorstore

import (
	"context"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/signal"
)

// patternLookup fetches full pattern rows for ANN candidates. Implemented by
// the database repository.
type patternLookup interface {
	SelectPatternsByIDs(ctx context.Context, ids []string) ([]*signal.HistoricalPattern, error)
}

// fallbackStore answers queries when the ANN index is unavailable or empty.
type fallbackStore interface {
	SelectPatterns(ctx context.Context, q signal.PatternQuery) ([]*signal.HistoricalPattern, error)
}

// PatternIndex is a PatternStore that narrows the candidate set with a
// Milvus ANN search before the engine's exact cosine scoring. The embedding
// the engine scores against is the float64 one stored in Postgres; Milvus
// only picks which rows are worth scoring.
type PatternIndex struct {
	milvus   *Client
	lookup   patternLookup
	fallback fallbackStore
	topK     int
	log      zerolog.Logger
}

func NewPatternIndex(milvus *Client, lookup patternLookup, fallback fallbackStore, topK int, logger zerolog.Logger) *PatternIndex {
	if topK <= 0 {
		topK = 200
	}
	return &PatternIndex{
		milvus:   milvus,
		lookup:   lookup,
		fallback: fallback,
		topK:     topK,
		log:      logger.With().Str("component", "pattern-index").Logger(),
	}
}

// SelectPatterns implements signal.PatternStore. ANN failures degrade to the
// full Postgres scan so signal generation never loses pattern enrichment to
// an index outage.
func (p *PatternIndex) SelectPatterns(ctx context.Context, q signal.PatternQuery) ([]*signal.HistoricalPattern, error) {
	if len(q.Embedding) == 0 {
		return p.fallback.SelectPatterns(ctx, q)
	}
	candidates, err := p.milvus.SearchCandidates(ctx, toFloat32(q.Embedding), q.Ticker, q.Since, p.topK)
	if err != nil {
		p.log.Warn().Err(err).Str("ticker", q.Ticker).Msg("ANN search failed, falling back to full scan")
		return p.fallback.SelectPatterns(ctx, q)
	}
	if len(candidates) == 0 {
		return p.fallback.SelectPatterns(ctx, q)
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.PatternID)
	}
	if q.Limit > 0 && len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	return p.lookup.SelectPatternsByIDs(ctx, ids)
}

// Index adds a pattern's embedding to the ANN collection.
func (p *PatternIndex) Index(ctx context.Context, pattern *signal.HistoricalPattern) error {
	return p.milvus.Insert(ctx, &PatternVector{
		PatternID:  pattern.ID,
		Embedding:  toFloat32(pattern.Embedding),
		Ticker:     pattern.Ticker,
		Horizon:    string(pattern.Snapshot.Horizon),
		ObservedAt: pattern.Timestamp,
	})
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
