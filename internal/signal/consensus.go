package signal

import (
	"fmt"
	"sort"
)

// BuildConsensus aggregates per-horizon signals into a consensus action,
// agreement ratio and conflict list. The consensus action is the most
// frequent among valid signals, ties broken by enumeration order; consensus
// confidence is the mean confidence of the winning signals scaled by how
// many horizons voted for it.
func BuildConsensus(signals map[TimeHorizon]*Signal) (ConsensusResult, []string) {
	valid := 0
	counts := make(map[Action]int)
	confSums := make(map[Action]float64)
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		valid++
		counts[sig.Action]++
		confSums[sig.Action] += sig.Confidence
	}
	if valid == 0 {
		return ConsensusResult{Action: ActionHold}, nil
	}

	var winner Action
	best := -1
	for _, action := range actionOrder {
		if counts[action] > best {
			winner = action
			best = counts[action]
		}
	}

	agreement := float64(best) / float64(valid)
	meanConf := confSums[winner] / float64(best)

	result := ConsensusResult{
		Action:     winner,
		Confidence: clamp01(meanConf * agreement),
		Agreement:  agreement,
	}
	return result, detectConflicts(signals, counts)
}

// detectConflicts flags ≥3 distinct actions across horizons, or any
// co-occurrence of buy-family and sell-family actions.
func detectConflicts(signals map[TimeHorizon]*Signal, counts map[Action]int) []string {
	var conflicts []string

	if len(counts) >= 3 {
		conflicts = append(conflicts,
			fmt.Sprintf("horizons disagree broadly: %d distinct actions", len(counts)))
	}

	buyCount, sellCount := 0, 0
	for action, n := range counts {
		if action.IsBuyFamily() {
			buyCount += n
		}
		if action.IsSellFamily() {
			sellCount += n
		}
	}
	if buyCount > 0 && sellCount > 0 {
		var buys, sells []string
		for _, h := range AllHorizons() {
			sig := signals[h]
			if sig == nil {
				continue
			}
			if sig.Action.IsBuyFamily() {
				buys = append(buys, string(h))
			}
			if sig.Action.IsSellFamily() {
				sells = append(sells, string(h))
			}
		}
		sort.Strings(buys)
		sort.Strings(sells)
		conflicts = append(conflicts,
			fmt.Sprintf("opposing directions: %v lean buy while %v lean sell", buys, sells))
	}
	return conflicts
}

// consensusRecommendations turns consensus shape into caller-facing guidance.
func consensusRecommendations(result ConsensusResult, conflicts []string, valid int) []string {
	var recs []string
	switch {
	case len(conflicts) > 0:
		recs = append(recs, "Mixed signals across horizons; reduce position size or wait for alignment")
	case result.Agreement == 1 && valid > 1:
		recs = append(recs, fmt.Sprintf("All %d horizons agree on %s", valid, result.Action))
	case result.Agreement >= 0.75:
		recs = append(recs, fmt.Sprintf("Strong consensus on %s across horizons", result.Action))
	}
	if result.Action.IsBuyFamily() && result.Confidence >= 0.6 {
		recs = append(recs, "Consider scaling in across the agreeing horizons")
	}
	if result.Action.IsSellFamily() && result.Confidence >= 0.6 {
		recs = append(recs, "Consider reducing exposure while horizons align bearish")
	}
	return recs
}
