package signal

import (
	"fmt"
	"hash/fnv"
	"math"
)

// EmbeddingDim is the fixed dimensionality of context embeddings. Stored
// patterns and fresh queries must agree on it or similarity is meaningless.
const EmbeddingDim = 384

// numericSlots is the number of leading vector slots reserved for scaled
// numeric features; the remaining slots carry hashed categorical features.
const numericSlots = 16

// TextEmbedder turns a categorical token into a fixed-length vector. The
// default is hash-based; production implementations may swap in a learned
// model as long as output dimensionality stays fixed and deterministic.
type TextEmbedder interface {
	Embed(token string, dim int) []float64
	Name() string
}

// HashEmbedder is a deterministic, dependency-free TextEmbedder. Each token
// seeds a splitmix64 stream from its FNV-1a hash, so identical tokens always
// produce identical vectors.
type HashEmbedder struct{}

// NewHashEmbedder creates the default hash-based embedder.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

// Name identifies the embedder implementation.
func (e *HashEmbedder) Name() string { return "hash-v1" }

// Embed produces a dim-length vector with components in [-1, 1].
func (e *HashEmbedder) Embed(token string, dim int) []float64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	state := h.Sum64()

	vec := make([]float64, dim)
	for i := range vec {
		state = splitmix64(state)
		// Map the top 53 bits onto [-1, 1).
		vec[i] = float64(state>>11)/float64(1<<52) - 1
	}
	return vec
}

// splitmix64 advances a 64-bit PRNG state. Standard constants.
func splitmix64(state uint64) uint64 {
	state += 0x9e3779b97f4a7c15
	z := state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// ContextVectorizer maps a ContextSnapshot onto a normalized fixed-length
// embedding. Pure function of its input: semantically identical snapshots
// yield identical vectors.
type ContextVectorizer struct {
	embedder TextEmbedder
	dim      int
}

// NewContextVectorizer creates a vectorizer backed by the given embedder.
// A nil embedder falls back to the hash implementation.
func NewContextVectorizer(embedder TextEmbedder) *ContextVectorizer {
	if embedder == nil {
		embedder = NewHashEmbedder()
	}
	return &ContextVectorizer{embedder: embedder, dim: EmbeddingDim}
}

// Dim returns the embedding dimensionality.
func (v *ContextVectorizer) Dim() int { return v.dim }

// Vectorize produces the L2-normalized embedding for a snapshot.
func (v *ContextVectorizer) Vectorize(snap *ContextSnapshot) []float64 {
	vec := make([]float64, v.dim)

	// Numeric features occupy the reserved leading slots. Each is scaled
	// roughly into [-1, 1] before the global normalization.
	vec[0] = clamp(snap.Technical.Confidence*2-1, -1, 1)
	vec[1] = float64(snap.Technical.Signal.Direction())
	vec[2] = clamp(snap.Sentiment.Score, -1, 1)
	vec[3] = clamp(float64(snap.Sentiment.NewsVolume)/50, 0, 1)
	vec[4] = bandWidth(snap.Technical)
	vec[5] = bucketValue(snap.Market.VolatilityBucket)
	vec[6] = bucketValue(snap.Market.VolumeBucket)
	vec[7] = horizonValue(snap.Horizon)

	// Categorical features are hashed into the remaining slots and summed.
	tokens := []string{
		"ticker:" + snap.Ticker,
		"tech:" + string(snap.Technical.Signal),
		"trend:" + snap.Technical.Trend,
		"sentiment:" + snap.Sentiment.Label,
		"market:" + snap.Market.Condition,
		"mtrend:" + snap.Market.Trend,
		fmt.Sprintf("horizon:%s", snap.Horizon),
	}
	catDim := v.dim - numericSlots
	for _, tok := range tokens {
		emb := v.embedder.Embed(tok, catDim)
		for i, val := range emb {
			vec[numericSlots+i] += val
		}
	}

	return l2Normalize(vec)
}

// bandWidth measures the relative width of the support/resistance band.
// Zero when levels are unknown or inverted.
func bandWidth(t TechnicalSummary) float64 {
	if t.Support <= 0 || t.Resistance <= t.Support {
		return 0
	}
	return clamp((t.Resistance-t.Support)/t.Resistance, 0, 1)
}

func bucketValue(bucket string) float64 {
	switch bucket {
	case "LOW":
		return -1
	case "HIGH":
		return 1
	default:
		return 0
	}
}

func horizonValue(h TimeHorizon) float64 {
	switch h {
	case HorizonIntraday:
		return -1
	case HorizonShortTerm:
		return -0.33
	case HorizonMediumTerm:
		return 0.33
	case HorizonLongTerm:
		return 1
	default:
		return 0
	}
}

// l2Normalize scales a vector to unit Euclidean norm. A zero vector gets a
// deterministic unit vector in the first component so downstream dot products
// stay well-defined.
func l2Normalize(vec []float64) []float64 {
	sum := 0.0
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		vec[0] = 1
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// dotProduct computes the inner product of two equal-length vectors. For
// L2-normalized inputs this equals their cosine similarity.
func dotProduct(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
