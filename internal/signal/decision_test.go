package signal

import (
	"testing"
)

// TestMapDecisionBands walks the score bands at and around their bounds.
func TestMapDecisionBands(t *testing.T) {
	cases := []struct {
		score     float64
		agreement float64
		action    Action
		strength  Strength
	}{
		{0.95, 0, ActionStrongBuy, StrengthVeryStrong},
		{0.85, 0, ActionStrongBuy, StrengthVeryStrong}, // inclusive lower bound
		{0.84, 0, ActionBuy, StrengthStrong},
		{0.70, 0, ActionBuy, StrengthStrong},
		{0.60, 0, ActionBuy, StrengthModerate},
		{0.55, 0, ActionBuy, StrengthModerate},
		{0.50, 0, ActionHold, StrengthModerate},
		{0.449, 0, ActionHold, StrengthModerate},
		{0.40, 0, ActionSell, StrengthModerate},
		{0.30, 0, ActionSell, StrengthModerate},
		{0.20, 0, ActionSell, StrengthStrong},
		{0.15, 0, ActionSell, StrengthStrong},
		{0.149, 0, ActionStrongSell, StrengthVeryStrong},
		{0.05, 0, ActionStrongSell, StrengthVeryStrong},
	}
	for _, tc := range cases {
		d := MapDecision(tc.score, tc.agreement)
		if d.Action != tc.action || d.Strength != tc.strength {
			t.Errorf("score %.3f agreement %.2f: got (%s, %s), want (%s, %s)",
				tc.score, tc.agreement, d.Action, d.Strength, tc.action, tc.strength)
		}
		if d.Action == ActionWatch {
			t.Errorf("score %.3f: scoring path must never emit WATCH", tc.score)
		}
	}
}

// TestMapDecisionAgreementAmplifies verifies agreement pushes conviction
// away from the neutral midpoint in both directions.
func TestMapDecisionAgreementAmplifies(t *testing.T) {
	buy := MapDecision(0.78, 1)
	if buy.Action != ActionStrongBuy {
		t.Errorf("0.78 with full agreement should reach STRONG_BUY, got %s", buy.Action)
	}

	sell := MapDecision(0.22, 1)
	if sell.Action != ActionStrongSell {
		t.Errorf("0.22 with full agreement should deepen to STRONG_SELL, got %s", sell.Action)
	}
}

// TestComputeTargetsOrdering verifies conservative ≤ moderate ≤ aggressive
// for an upward move and the reverse for a downward move.
func TestComputeTargetsOrdering(t *testing.T) {
	tech := bullishTechnical()
	tech.ResistanceLevels = nil // no clipping for the ordering check
	tech.SupportLevels = nil

	up := ComputeTargets(tech, 0.6, HorizonMediumTerm, 0.8, ActionBuy)
	if !(up.Conservative <= up.Moderate && up.Moderate <= up.Aggressive) {
		t.Errorf("upward targets out of order: %+v", up)
	}
	if up.Conservative <= tech.CurrentPrice {
		t.Errorf("buy targets should sit above price: %+v", up)
	}

	down := ComputeTargets(tech, -0.6, HorizonMediumTerm, 0.8, ActionSell)
	if !(down.Aggressive <= down.Moderate && down.Moderate <= down.Conservative) {
		t.Errorf("downward targets out of order: %+v", down)
	}
	if down.Conservative >= tech.CurrentPrice {
		t.Errorf("sell targets should sit below price: %+v", down)
	}
}

// TestComputeTargetsClipping verifies targets respect support/resistance.
func TestComputeTargetsClipping(t *testing.T) {
	tech := bullishTechnical() // price 185, nearest resistance 195, nearest support 170

	up := ComputeTargets(tech, 0.9, HorizonLongTerm, 0.9, ActionStrongBuy)
	if up.Aggressive > 195 {
		t.Errorf("aggressive buy target %.2f exceeds resistance 195", up.Aggressive)
	}

	down := ComputeTargets(tech, -0.9, HorizonLongTerm, 0.9, ActionStrongSell)
	if down.Aggressive < 170 {
		t.Errorf("aggressive sell target %.2f breaks support 170", down.Aggressive)
	}
}

// TestComputeTargetsHorizonScale verifies longer horizons target larger moves.
func TestComputeTargetsHorizonScale(t *testing.T) {
	tech := bullishTechnical()
	tech.ResistanceLevels = nil

	intraday := ComputeTargets(tech, 0.3, HorizonIntraday, 0.7, ActionBuy)
	long := ComputeTargets(tech, 0.3, HorizonLongTerm, 0.7, ActionBuy)
	if long.Moderate <= intraday.Moderate {
		t.Errorf("long-term target %.2f should exceed intraday %.2f", long.Moderate, intraday.Moderate)
	}
}

// TestComputeTargetsZeroPrice verifies a missing price yields empty targets.
func TestComputeTargetsZeroPrice(t *testing.T) {
	targets := ComputeTargets(&TechnicalAnalysis{}, 0.5, HorizonShortTerm, 0.7, ActionBuy)
	if targets != (PriceTargets{}) {
		t.Errorf("expected zero targets without a price, got %+v", targets)
	}
}
