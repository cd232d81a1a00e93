package signal

import (
	"testing"
)

func bullishTechnical() *TechnicalAnalysis {
	return &TechnicalAnalysis{
		Ticker:           "AAPL",
		OverallSignal:    ActionBuy,
		Confidence:       0.8,
		Trend:            "UPTREND",
		RSI:              58,
		CurrentPrice:     185,
		Volatility:       2.2,
		VolumeRatio:      1.6,
		SupportLevels:    []float64{170, 162},
		ResistanceLevels: []float64{195, 210},
	}
}

func bullishSentiment() *SentimentAnalysis {
	return &SentimentAnalysis{
		Ticker:         "AAPL",
		SentimentScore: 0.6,
		SentimentLabel: "bullish",
		Impact:         "POSITIVE",
		Confidence:     0.7,
		NewsCount:      24,
		TrendDirection: "IMPROVING",
	}
}

func bullishMatches(t *testing.T) []SimilarPattern {
	t.Helper()
	v := NewContextVectorizer(nil)
	snap := testSnapshot()
	var matches []SimilarPattern
	for i := 0; i < 3; i++ {
		p := patternFromSnapshot(v, snap, "m", 0, 8, true)
		matches = append(matches, SimilarPattern{Pattern: p, Similarity: 0.95, Relevance: 0.9, Weight: 0.855})
	}
	return matches
}

// TestAggregateBounds verifies confidence and agreement always land in [0,1].
func TestAggregateBounds(t *testing.T) {
	agg := NewConfidenceAggregator(DefaultWeights())

	cases := []struct {
		name string
		tech *TechnicalAnalysis
		sent *SentimentAnalysis
	}{
		{"bullish", bullishTechnical(), bullishSentiment()},
		{"bearish", &TechnicalAnalysis{OverallSignal: ActionStrongSell, Confidence: 0.95, RSI: 22, Volatility: 7},
			&SentimentAnalysis{SentimentScore: -0.9, Impact: "NEGATIVE", Confidence: 0.9, NewsCount: 40}},
		{"empty", &TechnicalAnalysis{}, &SentimentAnalysis{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			market := deriveMarketContext(tc.tech, tc.sent)
			out := agg.Aggregate(tc.tech, tc.sent, nil, market)

			if out.FinalConfidence < 0 || out.FinalConfidence > 1 {
				t.Errorf("final confidence %.3f outside [0,1]", out.FinalConfidence)
			}
			if out.Agreement.Overall < 0 || out.Agreement.Overall > 1 {
				t.Errorf("agreement %.3f outside [0,1]", out.Agreement.Overall)
			}
			if out.Score < 0 || out.Score > 1 {
				t.Errorf("score %.3f outside [0,1]", out.Score)
			}
			factors := []float64{out.Factors.Technical, out.Factors.Sentiment,
				out.Factors.PatternMatch, out.Factors.MarketCondition, out.Factors.Volume}
			for i, f := range factors {
				if f < 0 || f > 1 {
					t.Errorf("factor %d = %.3f outside [0,1]", i, f)
				}
			}
		})
	}
}

// TestAgreementDirections verifies the pairwise agreement rules.
func TestAgreementDirections(t *testing.T) {
	t.Run("aligned sources agree fully", func(t *testing.T) {
		agr := computeAgreement(bullishTechnical(), bullishSentiment(), nil)
		if agr.Overall != 1 {
			t.Errorf("aligned bull sources: agreement = %.3f, want 1.0", agr.Overall)
		}
	})

	t.Run("opposite sources agree zero", func(t *testing.T) {
		bearish := &SentimentAnalysis{SentimentScore: -0.7, Impact: "NEGATIVE", Confidence: 0.8}
		agr := computeAgreement(bullishTechnical(), bearish, nil)
		if agr.Overall != 0 {
			t.Errorf("opposed sources: agreement = %.3f, want 0.0", agr.Overall)
		}
	})

	t.Run("neutral side scores half", func(t *testing.T) {
		neutral := &SentimentAnalysis{SentimentScore: 0, Impact: "NEUTRAL", Confidence: 0.5}
		agr := computeAgreement(bullishTechnical(), neutral, nil)
		if agr.Overall != 0.5 {
			t.Errorf("one neutral side: agreement = %.3f, want 0.5", agr.Overall)
		}
	})
}

// TestExtremeRSIBoost verifies extreme RSI raises technical confidence.
func TestExtremeRSIBoost(t *testing.T) {
	normal := bullishTechnical()
	normal.RSI = 55

	extreme := bullishTechnical()
	extreme.RSI = 78

	if technicalConfidence(extreme) <= technicalConfidence(normal) {
		t.Error("extreme RSI should boost technical confidence")
	}
	if technicalConfidence(extreme) > 1 {
		t.Error("boosted confidence must stay clamped to 1")
	}
}

// TestDivergenceBoostsPatternConfidence verifies technical/sentiment
// divergence raises the pattern factor.
func TestDivergenceBoostsPatternConfidence(t *testing.T) {
	matches := bullishMatches(t)

	aligned := patternConfidence(bullishTechnical(), bullishSentiment(), matches)

	diverging := &SentimentAnalysis{SentimentScore: -0.5, Impact: "NEGATIVE", Confidence: 0.7}
	boosted := patternConfidence(bullishTechnical(), diverging, matches)

	if boosted <= aligned {
		t.Errorf("divergence should boost pattern confidence: %.3f vs %.3f", boosted, aligned)
	}
}

// TestNoMatchesNeutralPattern verifies the pattern factor sits at neutral
// when there is no historical evidence.
func TestNoMatchesNeutralPattern(t *testing.T) {
	if got := patternConfidence(bullishTechnical(), bullishSentiment(), nil); got != 0.5 {
		t.Errorf("no matches: pattern confidence = %.3f, want 0.5", got)
	}
}

// TestLowAgreementWarns verifies disagreement yields a warning without
// zeroing the confidence.
func TestLowAgreementWarns(t *testing.T) {
	agg := NewConfidenceAggregator(DefaultWeights())
	bearish := &SentimentAnalysis{SentimentScore: -0.7, Impact: "NEGATIVE", Confidence: 0.8, NewsCount: 15}
	tech := bullishTechnical()

	out := agg.Aggregate(tech, bearish, nil, deriveMarketContext(tech, bearish))
	if len(out.Warnings) == 0 {
		t.Error("expected a low-agreement warning")
	}
	if out.FinalConfidence == 0 {
		t.Error("low agreement must not zero the confidence")
	}
}

// TestWeightsValidate verifies custom weight validation.
func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights should validate: %v", err)
	}
	bad := Weights{Technical: 0.5, Sentiment: 0.5, PatternMatch: 0.5, MarketCondition: 0.5}
	if err := bad.Validate(); err == nil {
		t.Error("weights summing to 2.0 should fail validation")
	}
}
