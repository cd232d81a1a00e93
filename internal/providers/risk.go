package providers

import (
	"context"
	"fmt"
	"math"

	"trading-signal-engine/internal/signal"
)

// RiskAnalyzer is the in-process default risk provider. It scores execution
// risk from the realized sample statistics already carried by the technical
// analysis (volatility, volume, returns) plus source agreement, and derives
// a stop level and a position-size cap from them.
type RiskAnalyzer struct {
	// MaxPosition is the portfolio fraction allowed on a riskless trade.
	MaxPosition float64
}

func NewRiskAnalyzer() *RiskAnalyzer {
	return &RiskAnalyzer{MaxPosition: 0.10}
}

// AnalyzeSignalRisk implements signal.RiskProvider.
func (r *RiskAnalyzer) AnalyzeSignalRisk(_ context.Context, ticker string, sig *signal.Signal,
	tech *signal.TechnicalAnalysis, sent *signal.SentimentAnalysis) (*signal.RiskAssessment, error) {

	if tech == nil || sent == nil {
		return nil, fmt.Errorf("risk assessment for %s requires technical and sentiment inputs", ticker)
	}

	score := 0.0
	var warnings, recommendations []string

	// Volatility is the dominant term: 2% daily stddev is calm, 8% extreme.
	volRisk := clamp01((tech.Volatility - 1) / 7)
	score += 0.45 * volRisk
	if tech.Volatility > 5 {
		warnings = append(warnings, fmt.Sprintf("High volatility: %.1f%% daily moves", tech.Volatility))
	}

	// Downside realized in the recent return sample.
	if dd := maxDrawdown(tech.Returns); dd > 0 {
		score += 0.20 * clamp01(dd/15)
		if dd > 10 {
			warnings = append(warnings, fmt.Sprintf("Recent drawdown of %.1f%% in the return sample", dd))
		}
	}

	// Disagreeing sources make the decision fragile.
	if sig != nil {
		score += 0.20 * (1 - clamp01(sig.Agreement.Overall))
		if sig.Agreement.Overall < 0.5 {
			warnings = append(warnings, "Analysis sources disagree on direction")
		}
	}

	// Thin news flow means the sentiment leg rests on little evidence.
	if sent.NewsCount < 5 {
		score += 0.10
		warnings = append(warnings, fmt.Sprintf("Sparse news coverage (%d articles)", sent.NewsCount))
	}

	// Unusually low volume makes fills and levels less reliable.
	if tech.VolumeRatio > 0 && tech.VolumeRatio < 0.5 {
		score += 0.05
		warnings = append(warnings, "Volume well below average")
	}

	score = clamp01(score)

	level := signal.RiskLow
	switch {
	case score >= 0.65:
		level = signal.RiskHigh
	case score >= 0.35:
		level = signal.RiskMedium
	}

	stop := stopLossLevel(sig, tech)
	maxSize := r.MaxPosition * (1 - 0.7*score)

	switch level {
	case signal.RiskHigh:
		recommendations = append(recommendations, "Reduce position size and use a tight stop")
	case signal.RiskMedium:
		recommendations = append(recommendations, "Size the position below your normal allocation")
	}
	if stop > 0 {
		recommendations = append(recommendations, fmt.Sprintf("Suggested stop level: %.2f", stop))
	}

	return &signal.RiskAssessment{
		OverallRisk:     level,
		RiskScore:       score,
		Warnings:        warnings,
		Recommendations: recommendations,
		StopLossLevel:   stop,
		MaxPositionSize: maxSize,
	}, nil
}

// stopLossLevel puts the stop just beyond the nearest structural level, or
// falls back to a volatility multiple when no level exists.
func stopLossLevel(sig *signal.Signal, tech *signal.TechnicalAnalysis) float64 {
	if tech.CurrentPrice <= 0 {
		return 0
	}

	buySide := sig == nil || !sig.Action.IsSellFamily()
	if buySide {
		if support := tech.NearestSupport(); support > 0 {
			return support * 0.99
		}
		return tech.CurrentPrice * (1 - 1.5*tech.Volatility/100)
	}
	if resistance := tech.NearestResistance(); resistance > 0 {
		return resistance * 1.01
	}
	return tech.CurrentPrice * (1 + 1.5*tech.Volatility/100)
}

// maxDrawdown returns the largest peak-to-trough loss, in percent, over a
// sample of percent returns.
func maxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r/100
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > worst {
			worst = dd
		}
	}
	return worst * 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
