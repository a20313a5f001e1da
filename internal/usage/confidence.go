package usage

// Confidence score factor weights. They sum to 1.
const (
	weightDataPoints  = 0.30
	weightConsistency = 0.25
	weightRecency     = 0.20
	weightMethod      = 0.15
	weightCrossCheck  = 0.10

	// crossCheckScore is used until forecasts are back-tested.
	crossCheckScore = 0.5
)

var strategyReliability = map[Strategy]float64{
	StrategyWeightedMonthly: 0.9,
	StrategyFlatMonthly:     0.85,
	StrategyWeeklyRate:      0.3,
}

// ConfidenceScore rates an estimate between 0 and 1 from the amount of
// history, the month-to-month consistency, how fresh the latest
// transaction is and the averaging strategy. The confidence label stays
// with the tier; the score ranks estimates within a tier. No history
// scores 0.
func ConfidenceScore(result Result) float64 {
	if !result.HasData() {
		return 0
	}
	recency := 0.4
	if result.DaysSinceLastActive != nil {
		recency = scoreRecency(*result.DaysSinceLastActive)
	}
	method, ok := strategyReliability[result.Strategy]
	if !ok {
		method = 0.5
	}

	score := weightDataPoints*scoreDataMonths(result.DataMonths) +
		weightConsistency*scoreConsistency(result.Stats.CV) +
		weightRecency*recency +
		weightMethod*method +
		weightCrossCheck*crossCheckScore
	return roundTo(score, 2)
}

func scoreDataMonths(months int) float64 {
	switch {
	case months >= 12:
		return 1.0
	case months >= 6:
		return 0.75
	case months >= 3:
		return 0.5
	default:
		return 0.25
	}
}

func scoreConsistency(cv float64) float64 {
	switch {
	case cv < 0.2:
		return 1.0
	case cv < 0.5:
		return 0.7
	case cv < 1.0:
		return 0.4
	default:
		return 0.2
	}
}

func scoreRecency(days int) float64 {
	switch {
	case days <= 30:
		return 1.0
	case days <= 60:
		return 0.8
	case days <= 90:
		return 0.6
	default:
		return 0.4
	}
}
