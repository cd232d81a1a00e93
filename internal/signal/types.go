package signal

import (
	"time"
)

// Action is the discrete trading decision taxonomy.
type Action string

const (
	ActionStrongBuy  Action = "STRONG_BUY"
	ActionBuy        Action = "BUY"
	ActionHold       Action = "HOLD"
	ActionSell       Action = "SELL"
	ActionStrongSell Action = "STRONG_SELL"
	// ActionWatch exists in the taxonomy for callers that track candidates,
	// but the scoring path never produces it.
	ActionWatch Action = "WATCH"
)

// actionOrder defines the canonical enumeration order, used for tie-breaking
// in consensus voting.
var actionOrder = []Action{
	ActionStrongBuy, ActionBuy, ActionHold, ActionSell, ActionStrongSell, ActionWatch,
}

// IsBuyFamily reports whether the action is BUY or STRONG_BUY.
func (a Action) IsBuyFamily() bool {
	return a == ActionBuy || a == ActionStrongBuy
}

// IsSellFamily reports whether the action is SELL or STRONG_SELL.
func (a Action) IsSellFamily() bool {
	return a == ActionSell || a == ActionStrongSell
}

// Direction returns +1 for buy-family actions, -1 for sell-family actions
// and 0 for anything neutral.
func (a Action) Direction() int {
	switch {
	case a.IsBuyFamily():
		return 1
	case a.IsSellFamily():
		return -1
	default:
		return 0
	}
}

// Strength qualifies how forceful a decision is.
type Strength string

const (
	StrengthWeak       Strength = "WEAK"
	StrengthModerate   Strength = "MODERATE"
	StrengthStrong     Strength = "STRONG"
	StrengthVeryStrong Strength = "VERY_STRONG"
)

// TimeHorizon is the holding-period context for a signal.
type TimeHorizon string

const (
	HorizonIntraday   TimeHorizon = "INTRADAY"
	HorizonShortTerm  TimeHorizon = "SHORT_TERM"
	HorizonMediumTerm TimeHorizon = "MEDIUM_TERM"
	HorizonLongTerm   TimeHorizon = "LONG_TERM"
)

// AllHorizons returns the supported horizons in canonical order.
func AllHorizons() []TimeHorizon {
	return []TimeHorizon{HorizonIntraday, HorizonShortTerm, HorizonMediumTerm, HorizonLongTerm}
}

// validity returns how long a signal generated for the horizon stays valid.
func (h TimeHorizon) validity() time.Duration {
	switch h {
	case HorizonIntraday:
		return 6 * time.Hour
	case HorizonShortTerm:
		return 3 * 24 * time.Hour
	case HorizonMediumTerm:
		return 14 * 24 * time.Hour
	case HorizonLongTerm:
		return 60 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}

// AnalysisDepth controls how much enrichment a generation request performs.
type AnalysisDepth string

const (
	DepthQuick         AnalysisDepth = "QUICK"
	DepthStandard      AnalysisDepth = "STANDARD"
	DepthComprehensive AnalysisDepth = "COMPREHENSIVE"
)

// RiskLevel buckets the overall risk of acting on a signal.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// TechnicalSummary is the condensed technical view carried inside a
// ContextSnapshot.
type TechnicalSummary struct {
	Signal     Action  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Trend      string  `json:"trend"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// SentimentSummary is the condensed sentiment view carried inside a
// ContextSnapshot.
type SentimentSummary struct {
	Score      float64 `json:"score"` // -1 (bearish) to +1 (bullish)
	Label      string  `json:"label"`
	NewsVolume int     `json:"news_volume"`
}

// MarketContext captures broad market condition facts for one ticker.
type MarketContext struct {
	Condition        string             `json:"condition"` // BULL, BEAR, NEUTRAL, VOLATILE
	Trend            string             `json:"trend"`
	VolatilityBucket string             `json:"volatility_bucket"` // LOW, MEDIUM, HIGH
	VolumeBucket     string             `json:"volume_bucket"`     // LOW, NORMAL, HIGH
	Correlations     map[string]float64 `json:"correlations,omitempty"`
}

// ContextSnapshot is the immutable per-request summary of technical,
// sentiment and market facts that the vectorizer embeds.
type ContextSnapshot struct {
	Ticker    string           `json:"ticker"`
	Horizon   TimeHorizon      `json:"horizon"`
	Technical TechnicalSummary `json:"technical"`
	Sentiment SentimentSummary `json:"sentiment"`
	Market    MarketContext    `json:"market"`
}

// PatternOutcome is the realized result recorded for a historical pattern.
type PatternOutcome struct {
	ActualReturn float64 `json:"actual_return"` // percent
	DaysToTarget int     `json:"days_to_target"`
	Successful   bool    `json:"successful"`
}

// HistoricalPattern is a stored (snapshot, signal, outcome) triple. Written
// once by the storage layer when an outcome is known; read-only afterwards.
type HistoricalPattern struct {
	ID        string          `json:"id"`
	Ticker    string          `json:"ticker"`
	Timestamp time.Time       `json:"timestamp"`
	Snapshot  ContextSnapshot `json:"snapshot"`
	Embedding []float64       `json:"embedding"`
	Action    Action          `json:"action"`
	Outcome   PatternOutcome  `json:"outcome"`
}

// SimilarPattern pairs a historical pattern with its match scores for one
// generation call.
type SimilarPattern struct {
	Pattern    *HistoricalPattern `json:"pattern"`
	Similarity float64            `json:"similarity"`
	Relevance  float64            `json:"relevance"`
	Weight     float64            `json:"weight"`
}

// ConfidenceFactors holds the per-source confidence scalars, each in [0,1].
type ConfidenceFactors struct {
	Technical       float64 `json:"technical"`
	Sentiment       float64 `json:"sentiment"`
	PatternMatch    float64 `json:"pattern_match"`
	MarketCondition float64 `json:"market_condition"`
	Volume          float64 `json:"volume"`
}

// AgreementResult measures directional consensus across sources.
type AgreementResult struct {
	Overall  float64            `json:"overall"`
	Pairwise map[string]float64 `json:"pairwise,omitempty"`
}

// PriceTargets are the horizon-scaled targets attached to a signal.
type PriceTargets struct {
	Conservative float64 `json:"conservative"`
	Moderate     float64 `json:"moderate"`
	Aggressive   float64 `json:"aggressive"`
}

// RiskAssessment is the single risk record consumed from the risk provider.
type RiskAssessment struct {
	OverallRisk     RiskLevel `json:"overall_risk"`
	RiskScore       float64   `json:"risk_score"` // 0 (benign) to 1 (extreme)
	Warnings        []string  `json:"warnings,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	StopLossLevel   float64   `json:"stop_loss_level"`
	MaxPositionSize float64   `json:"max_position_size"` // fraction of portfolio
}

// Signal is a finished trading decision. Immutable once created; the update
// path produces a new Signal rather than mutating an old one.
type Signal struct {
	ID          string      `json:"id"`
	Ticker      string      `json:"ticker"`
	GeneratedAt time.Time   `json:"generated_at"`
	Horizon     TimeHorizon `json:"horizon"`

	Action     Action   `json:"action"`
	Strength   Strength `json:"strength"`
	Confidence float64  `json:"confidence"`
	Score      float64  `json:"score"` // directional decision score in [0,1]

	Factors   ConfidenceFactors `json:"factors"`
	Agreement AgreementResult   `json:"agreement"`

	Risk    *RiskAssessment `json:"risk,omitempty"`
	Market  MarketContext   `json:"market"`
	Matches []SimilarPattern `json:"pattern_matches,omitempty"`
	Targets PriceTargets    `json:"targets"`

	Reasoning  []string `json:"reasoning"`
	KeyFactors []string `json:"key_factors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`

	ValidUntil time.Time `json:"valid_until"`
}

// Options tune a single generation request.
type Options struct {
	Horizon         TimeHorizon   `json:"horizon"`
	RiskTolerance   string        `json:"risk_tolerance"`
	Depth           AnalysisDepth `json:"depth"`
	IncludePatterns bool          `json:"include_patterns"`
	IncludeBacktest bool          `json:"include_backtest"`
	CustomWeights   *Weights      `json:"custom_weights,omitempty"`
}

// DefaultOptions returns the options used when a caller passes none.
func DefaultOptions() Options {
	return Options{
		Horizon:         HorizonMediumTerm,
		Depth:           DepthStandard,
		IncludePatterns: true,
	}
}

// normalized fills zero-valued fields with defaults.
func (o Options) normalized() Options {
	if o.Horizon == "" {
		o.Horizon = HorizonMediumTerm
	}
	if o.Depth == "" {
		o.Depth = DepthStandard
	}
	return o
}

// BatchSummary aggregates the outcome of a batch generation run.
type BatchSummary struct {
	TotalAnalyzed     int            `json:"total_analyzed"`
	SignalsGenerated  int            `json:"signals_generated"`
	AverageConfidence float64        `json:"average_confidence"`
	ActionBreakdown   map[Action]int `json:"action_breakdown"`
	ProcessingTime    time.Duration  `json:"processing_time"`
}

// BatchError records one ticker that failed during a batch run.
type BatchError struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// BatchResult is the full outcome of GenerateBatchSignals.
type BatchResult struct {
	Signals []*Signal    `json:"signals"`
	Summary BatchSummary `json:"summary"`
	Errors  []BatchError `json:"errors"`
}

// ConsensusResult summarizes cross-horizon agreement.
type ConsensusResult struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Agreement  float64 `json:"agreement"`
}

// MultiTimeframeResult holds per-horizon signals plus their consensus.
type MultiTimeframeResult struct {
	Ticker          string                   `json:"ticker"`
	Signals         map[TimeHorizon]*Signal  `json:"signals"`
	Consensus       ConsensusResult          `json:"consensus"`
	Conflicts       []string                 `json:"conflicts,omitempty"`
	Recommendations []string                 `json:"recommendations,omitempty"`
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// clamp01 clamps a confidence-style value into [0,1].
func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
