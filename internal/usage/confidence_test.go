package usage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

func scoredResult(strategy Strategy, months int, cv float64, idleDays *int) Result {
	last := testNow
	return Result{
		Strategy:            strategy,
		DataMonths:          months,
		Stats:               Descriptive{CV: cv},
		LastTransactionAt:   &last,
		DaysSinceLastActive: idleDays,
	}
}

func TestConfidenceScore(t *testing.T) {
	days := func(d int) *int { return &d }

	cases := []struct {
		name   string
		result Result
		want   float64
	}{
		{"no history", Result{}, 0},
		{"long steady history", scoredResult(StrategyWeightedMonthly, 14, 0.1, days(3)), 0.935},
		{"mid history", scoredResult(StrategyFlatMonthly, 7, 0.3, days(45)), 0.74},
		{"sparse stale history", scoredResult(StrategyWeeklyRate, 1, 1.5, days(120)), 0.3},
		{"unknown recency", scoredResult(StrategyFlatMonthly, 3, 0.6, nil), 0.51},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, ConfidenceScore(tc.result), 0.011)
		})
	}
}

func TestConfidenceScoreFromCalculator(t *testing.T) {
	calc := newTestCalculator(ClassicScheme)
	var history []domain.Transaction
	for i := 13; i >= 1; i-- {
		history = append(history, txn(testNow.AddDate(0, -i, 0), 20))
	}

	steady := ConfidenceScore(calc.Calculate("p-1", history))
	sparse := ConfidenceScore(calc.Calculate("p-1", history[len(history)-1:]))

	require.Greater(t, steady, sparse)
	require.LessOrEqual(t, steady, 1.0)
	require.Greater(t, sparse, 0.0)
}
