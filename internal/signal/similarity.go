package signal

import (
	"math"
	"sort"
	"time"
)

// SimilarityConfig tunes how historical patterns are ranked against a query.
type SimilarityConfig struct {
	// MinSimilarity is the hard cosine cutoff; patterns at or below it are
	// discarded regardless of relevance.
	MinSimilarity float64
	// HalfLife controls the exponential recency decay of relevance.
	HalfLife time.Duration
	// TopK bounds how many matches a search returns.
	TopK int
}

// DefaultSimilarityConfig returns the standard search configuration.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		MinSimilarity: 0.7,
		HalfLife:      365 * 24 * time.Hour,
		TopK:          5,
	}
}

// SimilaritySearcher ranks stored patterns against a query embedding by
// cosine similarity discounted by recency and contextual relevance.
type SimilaritySearcher struct {
	cfg SimilarityConfig
}

// NewSimilaritySearcher creates a searcher. Zero-valued config fields fall
// back to defaults.
func NewSimilaritySearcher(cfg SimilarityConfig) *SimilaritySearcher {
	def := DefaultSimilarityConfig()
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = def.MinSimilarity
	}
	if cfg.HalfLife == 0 {
		cfg.HalfLife = def.HalfLife
	}
	if cfg.TopK == 0 {
		cfg.TopK = def.TopK
	}
	return &SimilaritySearcher{cfg: cfg}
}

// Search ranks the candidate corpus against the query snapshot and returns
// at most TopK matches sorted descending by weight. Candidates whose cosine
// similarity does not exceed MinSimilarity are dropped.
func (s *SimilaritySearcher) Search(query []float64, snap *ContextSnapshot,
	corpus []*HistoricalPattern, now time.Time) []SimilarPattern {

	matches := make([]SimilarPattern, 0, len(corpus))
	for _, p := range corpus {
		if len(p.Embedding) != len(query) {
			continue // stored under a different embedder; incomparable
		}
		sim := dotProduct(query, p.Embedding)
		if sim <= s.cfg.MinSimilarity {
			continue
		}
		rel := s.relevance(p, snap, now)
		matches = append(matches, SimilarPattern{
			Pattern:    p,
			Similarity: sim,
			Relevance:  rel,
			Weight:     sim * rel,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Weight > matches[j].Weight
	})

	if len(matches) > s.cfg.TopK {
		matches = matches[:s.cfg.TopK]
	}
	return matches
}

// relevance combines recency decay with contextual bonuses. The decay is
// blended 50/50 with a neutral baseline so old patterns never reach zero;
// the total is clipped to 1.
func (s *SimilaritySearcher) relevance(p *HistoricalPattern, snap *ContextSnapshot, now time.Time) float64 {
	age := now.Sub(p.Timestamp)
	if age < 0 {
		age = 0
	}
	halfLives := age.Hours() / s.cfg.HalfLife.Hours()
	decay := math.Exp(-math.Ln2 * halfLives)
	rel := 0.5 + 0.5*decay

	if p.Snapshot.Technical.Signal == snap.Technical.Signal {
		rel += 0.2
	}

	sentDelta := math.Abs(p.Snapshot.Sentiment.Score - snap.Sentiment.Score)
	rel += 0.3 * (1 - sentDelta/2)

	return clamp(rel, 0, 1)
}
