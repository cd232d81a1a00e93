package signal

import (
	"testing"
)

func horizonSignal(action Action, confidence float64) *Signal {
	return &Signal{Action: action, Confidence: confidence}
}

// TestConsensusUnanimous verifies four agreeing horizons produce full
// agreement and no conflicts.
func TestConsensusUnanimous(t *testing.T) {
	signals := map[TimeHorizon]*Signal{
		HorizonIntraday:   horizonSignal(ActionBuy, 0.7),
		HorizonShortTerm:  horizonSignal(ActionBuy, 0.8),
		HorizonMediumTerm: horizonSignal(ActionBuy, 0.75),
		HorizonLongTerm:   horizonSignal(ActionBuy, 0.65),
	}

	result, conflicts := BuildConsensus(signals)
	if result.Action != ActionBuy {
		t.Errorf("consensus action = %s, want BUY", result.Action)
	}
	if result.Agreement != 1.0 {
		t.Errorf("agreement = %.3f, want 1.0", result.Agreement)
	}
	if len(conflicts) != 0 {
		t.Errorf("unexpected conflicts: %v", conflicts)
	}
	// Mean confidence (0.725) scaled by full occupancy.
	if result.Confidence < 0.72 || result.Confidence > 0.73 {
		t.Errorf("consensus confidence = %.3f, want ~0.725", result.Confidence)
	}
}

// TestConsensusDissent verifies a dissenting SELL among BUY horizons
// produces a conflict entry.
func TestConsensusDissent(t *testing.T) {
	signals := map[TimeHorizon]*Signal{
		HorizonIntraday:   horizonSignal(ActionBuy, 0.7),
		HorizonShortTerm:  horizonSignal(ActionBuy, 0.8),
		HorizonMediumTerm: horizonSignal(ActionBuy, 0.75),
		HorizonLongTerm:   horizonSignal(ActionSell, 0.6),
	}

	result, conflicts := BuildConsensus(signals)
	if result.Action != ActionBuy {
		t.Errorf("consensus action = %s, want BUY", result.Action)
	}
	if result.Agreement != 0.75 {
		t.Errorf("agreement = %.3f, want 0.75", result.Agreement)
	}
	if len(conflicts) == 0 {
		t.Error("expected a conflict entry for the dissenting SELL")
	}
}

// TestConsensusConfidenceScaling verifies confidence scales by occurrence
// ratio.
func TestConsensusConfidenceScaling(t *testing.T) {
	signals := map[TimeHorizon]*Signal{
		HorizonIntraday:  horizonSignal(ActionBuy, 0.8),
		HorizonShortTerm: horizonSignal(ActionBuy, 0.8),
		HorizonLongTerm:  horizonSignal(ActionHold, 0.5),
	}

	result, _ := BuildConsensus(signals)
	// Mean of winning confidences 0.8, scaled by 2/3.
	want := 0.8 * 2 / 3
	if result.Confidence < want-0.001 || result.Confidence > want+0.001 {
		t.Errorf("consensus confidence = %.3f, want %.3f", result.Confidence, want)
	}
}

// TestConsensusTieBreak verifies ties resolve by enumeration order.
func TestConsensusTieBreak(t *testing.T) {
	signals := map[TimeHorizon]*Signal{
		HorizonIntraday:  horizonSignal(ActionHold, 0.6),
		HorizonShortTerm: horizonSignal(ActionHold, 0.6),
		HorizonMediumTerm: horizonSignal(ActionBuy, 0.7),
		HorizonLongTerm:   horizonSignal(ActionBuy, 0.7),
	}

	result, _ := BuildConsensus(signals)
	// BUY precedes HOLD in the canonical order.
	if result.Action != ActionBuy {
		t.Errorf("tie should break toward BUY, got %s", result.Action)
	}
}

// TestConsensusThreeDistinctActions verifies the broad-disagreement conflict.
func TestConsensusThreeDistinctActions(t *testing.T) {
	signals := map[TimeHorizon]*Signal{
		HorizonIntraday:   horizonSignal(ActionBuy, 0.7),
		HorizonShortTerm:  horizonSignal(ActionHold, 0.5),
		HorizonMediumTerm: horizonSignal(ActionSell, 0.6),
	}

	_, conflicts := BuildConsensus(signals)
	if len(conflicts) < 2 {
		t.Errorf("expected both distinct-action and opposing-direction conflicts, got %v", conflicts)
	}
}

// TestConsensusEmpty verifies the degenerate case defaults to HOLD.
func TestConsensusEmpty(t *testing.T) {
	result, conflicts := BuildConsensus(map[TimeHorizon]*Signal{})
	if result.Action != ActionHold || len(conflicts) != 0 {
		t.Errorf("empty consensus should default to HOLD with no conflicts, got %s %v",
			result.Action, conflicts)
	}
}
