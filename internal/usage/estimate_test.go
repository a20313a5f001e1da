package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

func TestAnalyzeZeroHistory(t *testing.T) {
	calc := newTestCalculator(ClassicScheme)
	product := domain.Product{ID: "p-1", ClientID: "c-1", PackSize: 12, CurrentStockPacks: 4, IsActive: true}

	policy := domain.DefaultReorderPolicy()
	policy.ServiceLevel = 0.999
	policy.SafetyStockWeeks = 6

	est, err := Analyze(calc.Calculate(product.ID, nil), product, policy, testNow, AnalyzeOptions{})
	require.NoError(t, err)
	require.Zero(t, est.MonthlyUsageUnits)
	require.Equal(t, domain.ConfidenceLow, est.Confidence)
	require.Zero(t, est.ReorderPointPacks)
	require.Zero(t, est.Suggestion.SuggestedPacks)
	require.Equal(t, NoUsageWeeksRemaining, est.Suggestion.WeeksRemaining)
	require.Nil(t, est.WeeksRemaining)
	require.Equal(t, domain.StockStatusUnknown, est.StockStatus)
	require.Nil(t, est.Stockout)
	require.Equal(t, domain.LeadTimeFromClient, est.LeadTimeSource)
}

func TestAnalyzeProductLeadTimeOverride(t *testing.T) {
	calc := newTestCalculator(ClassicScheme)
	lead := 30
	product := domain.Product{ID: "p-1", PackSize: 10, CurrentStockPacks: 8, LeadTimeDays: &lead}
	txns := []domain.Transaction{
		txn(day(2024, 2, 1), 0),
		txn(day(2024, 4, 10), 91.32),
		txn(day(2024, 5, 10), 91.32),
		txn(day(2024, 6, 10), 91.32),
	}

	est, err := Analyze(calc.Calculate(product.ID, txns), product, domain.DefaultReorderPolicy(), testNow, AnalyzeOptions{})
	require.NoError(t, err)
	require.Equal(t, domain.Tier3Month, est.Tier)
	require.Equal(t, domain.LeadTimeFromProduct, est.LeadTimeSource)
	require.Equal(t, 30, est.ReorderPoint.LeadTimeDays)
	// 91.32/30.44 = 3 units a day: 90 lead-time demand plus 42 safety.
	require.Equal(t, 132, est.ReorderPoint.Units)
	require.Equal(t, 14, est.ReorderPointPacks)
	require.Equal(t, domain.StockStatusLow, est.StockStatus)
	require.NotNil(t, est.Stockout)
	require.Equal(t, 0, est.Suggestion.SuggestedUnits%product.PackSize)

	derived := est.Derived()
	require.Equal(t, est.ReorderPointPacks, derived.ReorderPointPacks)
	require.Equal(t, domain.Tier3Month, derived.Tier)

	metric := est.Metric()
	require.Equal(t, domain.Tier3Month, metric.PeriodType)
	require.Equal(t, day(2024, 4, 1), metric.PeriodStart)
	require.Equal(t, 3, metric.SampleSize)
}

func TestAnalyzeInvalidPackSize(t *testing.T) {
	calc := newTestCalculator(ClassicScheme)
	_, err := Analyze(calc.Calculate("p-1", nil), domain.Product{ID: "p-1"}, domain.DefaultReorderPolicy(), testNow, AnalyzeOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidPackSize)
}

func TestMonthlySnapshots(t *testing.T) {
	product := domain.Product{ID: "p-1", PackSize: 4}
	snaps := MonthlySnapshots(product, []domain.Transaction{
		txn(day(2024, 3, 2), 8),
		txn(day(2024, 1, 20), 2),
		txn(day(2024, 3, 30), 4),
	}, testNow)

	require.Len(t, snaps, 2)
	require.Equal(t, "2024-01", snaps[0].YearMonth)
	require.InDelta(t, 0.5, snaps[0].ConsumedPacks, 1e-9)
	require.Equal(t, "2024-03", snaps[1].YearMonth)
	require.InDelta(t, 12, snaps[1].ConsumedUnits, 1e-9)
	require.Equal(t, 2, snaps[1].TransactionCount)
}

func TestMonthlySnapshotsSkipsFutureAndFollowsClock(t *testing.T) {
	product := domain.Product{ID: "p-1", PackSize: 1}
	eastern := time.FixedZone("UTC-5", -5*60*60)
	snaps := MonthlySnapshots(product, []domain.Transaction{
		txn(day(2024, 5, 10), 3),
		txn(day(2024, 7, 1), 50),
		txn(testNow.Add(time.Hour), 7),
		txn(time.Date(2024, 3, 31, 23, 30, 0, 0, eastern), 2),
	}, testNow)

	require.Len(t, snaps, 2)
	require.Equal(t, "2024-04", snaps[0].YearMonth)
	require.InDelta(t, 2, snaps[0].ConsumedUnits, 1e-9)
	require.Equal(t, "2024-05", snaps[1].YearMonth)
	require.InDelta(t, 3, snaps[1].ConsumedUnits, 1e-9)
	require.Equal(t, 1, snaps[1].TransactionCount)
}
