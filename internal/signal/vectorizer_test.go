package signal

import (
	"math"
	"testing"
)

func testSnapshot() *ContextSnapshot {
	return &ContextSnapshot{
		Ticker:  "AAPL",
		Horizon: HorizonMediumTerm,
		Technical: TechnicalSummary{
			Signal:     ActionBuy,
			Confidence: 0.8,
			Trend:      "UPTREND",
			Support:    170,
			Resistance: 195,
		},
		Sentiment: SentimentSummary{
			Score:      0.6,
			Label:      "bullish",
			NewsVolume: 24,
		},
		Market: MarketContext{
			Condition:        "BULL",
			Trend:            "UPTREND",
			VolatilityBucket: "MEDIUM",
			VolumeBucket:     "HIGH",
		},
	}
}

// TestVectorizeDeterminism verifies identical snapshots yield identical
// embeddings.
func TestVectorizeDeterminism(t *testing.T) {
	v := NewContextVectorizer(nil)

	a := v.Vectorize(testSnapshot())
	b := v.Vectorize(testSnapshot())

	if len(a) != EmbeddingDim || len(b) != EmbeddingDim {
		t.Fatalf("expected %d dimensions, got %d and %d", EmbeddingDim, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

// TestVectorizeNormalized verifies every embedding has unit Euclidean norm.
func TestVectorizeNormalized(t *testing.T) {
	v := NewContextVectorizer(nil)

	snapshots := []*ContextSnapshot{
		testSnapshot(),
		{Ticker: "TSLA", Horizon: HorizonIntraday},
		{Ticker: "MSFT", Horizon: HorizonLongTerm, Sentiment: SentimentSummary{Score: -0.9, Label: "bearish"}},
	}
	for _, snap := range snapshots {
		vec := v.Vectorize(snap)
		norm := 0.0
		for _, val := range vec {
			norm += val * val
		}
		norm = math.Sqrt(norm)
		if math.Abs(norm-1) > 1e-6 {
			t.Errorf("snapshot %s: norm = %v, want 1.0", snap.Ticker, norm)
		}
	}
}

// TestVectorizeDistinguishesSnapshots verifies different snapshots produce
// different vectors.
func TestVectorizeDistinguishesSnapshots(t *testing.T) {
	v := NewContextVectorizer(nil)

	a := v.Vectorize(testSnapshot())

	other := testSnapshot()
	other.Technical.Signal = ActionSell
	other.Sentiment.Score = -0.6
	other.Sentiment.Label = "bearish"
	b := v.Vectorize(other)

	if dotProduct(a, b) > 0.999 {
		t.Error("opposite snapshots should not produce near-identical embeddings")
	}
}

// TestHashEmbedderDeterminism verifies the hash embedder is stable per token.
func TestHashEmbedderDeterminism(t *testing.T) {
	e := NewHashEmbedder()

	a := e.Embed("tech:BUY", 64)
	b := e.Embed("tech:BUY", 64)
	c := e.Embed("tech:SELL", 64)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same token produced different values at %d", i)
		}
		if a[i] < -1 || a[i] > 1 {
			t.Fatalf("component %d out of [-1,1]: %v", i, a[i])
		}
	}

	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different tokens produced identical vectors")
	}
}
