package signal

import (
	"context"
	"errors"
	"time"
)

// ErrSignalNotFound is returned by a SignalStore when no record matches.
var ErrSignalNotFound = errors.New("signal not found")

// TechnicalAnalysis is the pre-digested per-indicator view emitted by the
// technical collaborator.
type TechnicalAnalysis struct {
	Ticker           string             `json:"ticker"`
	OverallSignal    Action             `json:"overall_signal"`
	Confidence       float64            `json:"confidence"`
	Trend            string             `json:"trend"` // UPTREND, DOWNTREND, SIDEWAYS
	RSI              float64            `json:"rsi"`
	MACD             float64            `json:"macd"`
	MovingAverages   map[string]float64 `json:"moving_averages,omitempty"`
	CurrentPrice     float64            `json:"current_price"`
	Volatility       float64            `json:"volatility"`   // stddev of daily returns, percent
	VolumeRatio      float64            `json:"volume_ratio"` // current vs average volume
	Returns          []float64          `json:"returns,omitempty"`
	SupportLevels    []float64          `json:"support_levels,omitempty"`
	ResistanceLevels []float64          `json:"resistance_levels,omitempty"`
}

// NearestSupport returns the highest support below price, or 0 when none.
func (t *TechnicalAnalysis) NearestSupport() float64 {
	best := 0.0
	for _, s := range t.SupportLevels {
		if s < t.CurrentPrice && s > best {
			best = s
		}
	}
	return best
}

// NearestResistance returns the lowest resistance above price, or 0 when none.
func (t *TechnicalAnalysis) NearestResistance() float64 {
	best := 0.0
	for _, r := range t.ResistanceLevels {
		if r > t.CurrentPrice && (best == 0 || r < best) {
			best = r
		}
	}
	return best
}

// SentimentAnalysis is the news/sentiment view emitted by the sentiment
// collaborator.
type SentimentAnalysis struct {
	Ticker         string  `json:"ticker"`
	SentimentScore float64 `json:"sentiment_score"` // -1 to +1
	SentimentLabel string  `json:"sentiment_label"` // bearish, neutral, bullish
	Impact         string  `json:"impact"`          // POSITIVE, NEGATIVE, NEUTRAL
	Confidence     float64 `json:"confidence"`
	NewsCount      int     `json:"news_count"`
	TrendDirection string  `json:"trend_direction"`
}

// TechnicalProvider computes technical analysis for a ticker.
type TechnicalProvider interface {
	AnalyzeStock(ctx context.Context, ticker string) (*TechnicalAnalysis, error)
}

// SentimentProvider computes sentiment analysis for a ticker.
type SentimentProvider interface {
	AnalyzeSentiment(ctx context.Context, ticker string) (*SentimentAnalysis, error)
}

// RiskProvider assesses the risk of acting on a freshly scored signal.
type RiskProvider interface {
	AnalyzeSignalRisk(ctx context.Context, ticker string, sig *Signal,
		technical *TechnicalAnalysis, sentiment *SentimentAnalysis) (*RiskAssessment, error)
}

// PatternQuery is the {limit, where} query shape used against the pattern
// corpus. Zero values mean "no constraint".
type PatternQuery struct {
	Ticker  string
	Horizon TimeHorizon
	Since   time.Time
	Limit   int

	// Embedding carries the query vector for stores that pre-filter
	// candidates with an ANN index. Plain stores ignore it.
	Embedding []float64
}

// PatternStore provides read-only access to the historical pattern corpus.
// The corpus is an append-only log owned by the storage layer; the engine
// never deletes from it and never assumes a full scan — search operates over
// whatever subset the store returns.
type PatternStore interface {
	SelectPatterns(ctx context.Context, q PatternQuery) ([]*HistoricalPattern, error)
}

// SignalStore persists finished signals and serves prior ones for the
// update path.
type SignalStore interface {
	InsertSignal(ctx context.Context, sig *Signal) error
	GetSignal(ctx context.Context, id string) (*Signal, error)
}
