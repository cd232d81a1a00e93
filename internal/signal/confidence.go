package signal

import (
	"fmt"
	"math"
)

// Weights configures how much each source contributes to the fused decision.
type Weights struct {
	Technical       float64 `json:"technical"`
	Sentiment       float64 `json:"sentiment"`
	PatternMatch    float64 `json:"pattern_match"`
	MarketCondition float64 `json:"market_condition"`
}

// DefaultWeights returns the standard source weighting.
func DefaultWeights() Weights {
	return Weights{
		Technical:       0.35,
		Sentiment:       0.25,
		PatternMatch:    0.25,
		MarketCondition: 0.15,
	}
}

// Validate checks that the weights sum to 1.0 within tolerance.
func (w Weights) Validate() error {
	total := w.Technical + w.Sentiment + w.PatternMatch + w.MarketCondition
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("weights must sum to 1.0, got %.2f", total)
	}
	return nil
}

// Aggregation is the full output of the confidence aggregator: the scalar
// decision inputs plus the per-source breakdown kept for explanation and
// audit.
type Aggregation struct {
	Factors         ConfidenceFactors
	Agreement       AgreementResult
	FinalConfidence float64
	// Score is the directional decision score in [0,1]: 0.5 is neutral,
	// above favors buying, below favors selling.
	Score    float64
	Warnings []string
}

// ConfidenceAggregator fuses per-source confidences into one calibrated
// confidence and one directional decision score.
type ConfidenceAggregator struct {
	weights Weights
}

// NewConfidenceAggregator creates an aggregator with the given weights;
// zero weights fall back to defaults.
func NewConfidenceAggregator(w Weights) *ConfidenceAggregator {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &ConfidenceAggregator{weights: w}
}

// Aggregate combines the collaborator opinions for one ticker/horizon.
func (a *ConfidenceAggregator) Aggregate(tech *TechnicalAnalysis, sent *SentimentAnalysis,
	matches []SimilarPattern, market MarketContext) *Aggregation {

	factors := ConfidenceFactors{
		Technical:       technicalConfidence(tech),
		Sentiment:       sentimentConfidence(sent),
		PatternMatch:    patternConfidence(tech, sent, matches),
		MarketCondition: marketConfidence(market),
		Volume:          volumeConfidence(market),
	}
	// Volume quality tempers the market-condition factor rather than
	// carrying its own weight.
	blendedMarket := clamp01(0.7*factors.MarketCondition + 0.3*factors.Volume)

	agreement := computeAgreement(tech, sent, matches)

	weighted := a.weights.Technical*factors.Technical +
		a.weights.Sentiment*factors.Sentiment +
		a.weights.PatternMatch*factors.PatternMatch +
		a.weights.MarketCondition*blendedMarket

	bonus := math.Min(0.1, agreement.Overall*0.1)
	final := clamp01(weighted + bonus)

	agg := &Aggregation{
		Factors:         factors,
		Agreement:       agreement,
		FinalConfidence: final,
		Score:           a.decisionScore(tech, sent, matches, market, factors),
	}
	if agreement.Overall < 0.5 {
		agg.Warnings = append(agg.Warnings,
			fmt.Sprintf("low cross-source agreement (%.2f): sources disagree on direction", agreement.Overall))
	}
	return agg
}

// decisionScore folds each source's direction and conviction into a single
// scalar in [0,1] centered on 0.5.
func (a *ConfidenceAggregator) decisionScore(tech *TechnicalAnalysis, sent *SentimentAnalysis,
	matches []SimilarPattern, market MarketContext, factors ConfidenceFactors) float64 {

	techContrib := float64(tech.OverallSignal.Direction()) * factors.Technical

	sentContrib := clamp(sent.SentimentScore, -1, 1)

	patternContrib := 0.0
	if len(matches) > 0 {
		dirSum, weightSum := 0.0, 0.0
		for _, m := range matches {
			dirSum += float64(m.Pattern.Action.Direction()) * m.Weight
			weightSum += m.Weight
		}
		if weightSum > 0 {
			patternContrib = (dirSum / weightSum) * factors.PatternMatch
		}
	}

	marketContrib := 0.0
	switch market.Condition {
	case "BULL":
		marketContrib = 0.5
	case "BEAR":
		marketContrib = -0.5
	}

	net := a.weights.Technical*techContrib +
		a.weights.Sentiment*sentContrib +
		a.weights.PatternMatch*patternContrib +
		a.weights.MarketCondition*marketContrib

	return clamp01(0.5 + 0.5*clamp(net, -1, 1))
}

// technicalConfidence derives the technical source confidence. Extreme RSI
// readings make the technical picture more decisive, so they boost it.
func technicalConfidence(t *TechnicalAnalysis) float64 {
	conf := t.Confidence
	if t.RSI >= 70 || (t.RSI > 0 && t.RSI <= 30) {
		conf += 0.1
	}
	return clamp01(conf)
}

// sentimentConfidence derives the sentiment source confidence. A large news
// sample makes the reading more trustworthy.
func sentimentConfidence(s *SentimentAnalysis) float64 {
	conf := s.Confidence
	if s.NewsCount >= 20 {
		conf += 0.05
	}
	return clamp01(conf)
}

// patternConfidence scores the pattern-match source from realized outcomes,
// weighting each match by its search weight. Technical/sentiment divergence
// raises the stakes on historical evidence, so it boosts the factor.
func patternConfidence(t *TechnicalAnalysis, s *SentimentAnalysis, matches []SimilarPattern) float64 {
	if len(matches) == 0 {
		return 0.5 // neutral: no historical evidence either way
	}

	sum, weightSum := 0.0, 0.0
	for _, m := range matches {
		outcome := 0.2
		if m.Pattern.Outcome.Successful {
			outcome = 0.8
		}
		outcome += clamp(m.Pattern.Outcome.ActualReturn/50, -0.2, 0.2)
		sum += clamp01(outcome) * m.Weight
		weightSum += m.Weight
	}
	conf := sum / weightSum

	if t.OverallSignal.Direction()*impactDirection(s.Impact) < 0 {
		conf += 0.1
	}
	return clamp01(conf)
}

// marketConfidence scores how readable the broad market condition is.
func marketConfidence(m MarketContext) float64 {
	conf := 0.5
	switch m.Condition {
	case "BULL", "BEAR":
		conf = 0.7
	case "VOLATILE":
		conf = 0.35
	}
	switch m.VolatilityBucket {
	case "HIGH":
		conf -= 0.1
	case "LOW":
		conf += 0.05
	}
	return clamp01(conf)
}

// volumeConfidence scores how well volume supports the current reading.
func volumeConfidence(m MarketContext) float64 {
	switch m.VolumeBucket {
	case "HIGH":
		return 0.8
	case "LOW":
		return 0.4
	default:
		return 0.6
	}
}

// computeAgreement compares directional sign across the technical signal,
// the sentiment impact label and each matched pattern's implied action.
// Pairwise agreement is 1 for the same direction, 0 for opposite and 0.5
// when one side is neutral; the overall value is the mean over all pairs.
func computeAgreement(tech *TechnicalAnalysis, sent *SentimentAnalysis, matches []SimilarPattern) AgreementResult {
	type source struct {
		name string
		dir  int
	}
	sources := []source{
		{"technical", tech.OverallSignal.Direction()},
		{"sentiment", impactDirection(sent.Impact)},
	}
	for i, m := range matches {
		sources = append(sources, source{fmt.Sprintf("pattern_%d", i+1), m.Pattern.Action.Direction()})
	}

	result := AgreementResult{Pairwise: make(map[string]float64)}
	total, pairs := 0.0, 0
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			score := pairAgreement(sources[i].dir, sources[j].dir)
			result.Pairwise[sources[i].name+"|"+sources[j].name] = score
			total += score
			pairs++
		}
	}
	if pairs == 0 {
		result.Overall = 1
		return result
	}
	result.Overall = clamp01(total / float64(pairs))
	return result
}

func pairAgreement(a, b int) float64 {
	switch {
	case a == 0 || b == 0:
		if a == b {
			return 1 // both neutral point the same way
		}
		return 0.5
	case a == b:
		return 1
	default:
		return 0
	}
}

// impactDirection maps a sentiment impact label onto a directional sign.
func impactDirection(impact string) int {
	switch impact {
	case "POSITIVE":
		return 1
	case "NEGATIVE":
		return -1
	default:
		return 0
	}
}
