package signal

// holdBandTolerance widens the HOLD band's lower bound by half a point so a
// marginal score does not flap between HOLD and SELL between two runs over
// near-identical inputs.
const holdBandTolerance = 0.005

// Decision is the discrete output of the mapper.
type Decision struct {
	Action   Action
	Strength Strength
	// AdjustedScore is the score after the agreement adjustment, the value
	// actually compared against the bands.
	AdjustedScore float64
}

// MapDecision converts a directional score and cross-source agreement into a
// discrete (action, strength) pair. Agreement amplifies conviction away from
// the neutral midpoint by up to 0.1. Bands are inclusive on their lower
// bound; a score of exactly 0.85 maps to STRONG_BUY. The scoring path never
// emits WATCH.
func MapDecision(score, agreement float64) Decision {
	adjustment := agreement * 0.1
	if score < 0.5 {
		adjustment = -adjustment
	}
	adjusted := clamp01(score + adjustment)

	var action Action
	var strength Strength
	switch {
	case adjusted >= 0.85:
		action, strength = ActionStrongBuy, StrengthVeryStrong
	case adjusted >= 0.70:
		action, strength = ActionBuy, StrengthStrong
	case adjusted >= 0.55:
		action, strength = ActionBuy, StrengthModerate
	case adjusted >= 0.45-holdBandTolerance:
		action, strength = ActionHold, StrengthModerate
	case adjusted >= 0.30:
		action, strength = ActionSell, StrengthModerate
	case adjusted >= 0.15:
		action, strength = ActionSell, StrengthStrong
	default:
		action, strength = ActionStrongSell, StrengthVeryStrong
	}

	return Decision{Action: action, Strength: strength, AdjustedScore: adjusted}
}

// baseMove returns the horizon-dependent expected move in percent.
func baseMove(h TimeHorizon) float64 {
	switch h {
	case HorizonIntraday:
		return 2
	case HorizonShortTerm:
		return 5
	case HorizonMediumTerm:
		return 12
	case HorizonLongTerm:
		return 25
	default:
		return 12
	}
}

// ComputeTargets derives conservative/moderate/aggressive price targets from
// the horizon's base move, adjusted by sentiment and confidence, and clipped
// to the technical support/resistance bounds.
func ComputeTargets(tech *TechnicalAnalysis, sentimentScore float64,
	horizon TimeHorizon, confidence float64, action Action) PriceTargets {

	price := tech.CurrentPrice
	if price <= 0 {
		return PriceTargets{}
	}

	adjustment := sentimentScore*0.3 + (confidence-0.5)*0.2
	move := baseMove(horizon) / 100 * (1 + adjustment)

	direction := float64(action.Direction())
	if direction == 0 {
		// HOLD still carries targets so callers can see the band; lean on
		// the sentiment sign for direction.
		direction = 1
		if sentimentScore < 0 {
			direction = -1
		}
	}

	targets := PriceTargets{
		Conservative: price * (1 + direction*move*0.6),
		Moderate:     price * (1 + direction*move),
		Aggressive:   price * (1 + direction*move*1.5),
	}

	if direction > 0 {
		if res := tech.NearestResistance(); res > 0 {
			targets.Conservative = minFloat(targets.Conservative, res)
			targets.Moderate = minFloat(targets.Moderate, res)
			targets.Aggressive = minFloat(targets.Aggressive, res)
		}
	} else {
		if sup := tech.NearestSupport(); sup > 0 {
			targets.Conservative = maxFloat(targets.Conservative, sup)
			targets.Moderate = maxFloat(targets.Moderate, sup)
			targets.Aggressive = maxFloat(targets.Aggressive, sup)
		}
	}
	return targets
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
