package usage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

func reorderPoint(t *testing.T, dailyRate float64, leadTimeDays int, stdDev float64, policy domain.ReorderPolicy) ReorderPoint {
	t.Helper()
	rp, err := CalculateReorderPoint(dailyRate, leadTimeDays, stdDev, policy)
	require.NoError(t, err)
	return rp
}

func TestZScoreLookup(t *testing.T) {
	z, ok := ZScore(0.95)
	require.True(t, ok)
	require.Equal(t, 1.65, z)

	z, ok = ZScore(0.999)
	require.True(t, ok)
	require.Equal(t, 3.09, z)

	z, ok = ZScore(0.80)
	require.False(t, ok)
	require.Equal(t, 1.65, z)
}

func TestReorderPointZeroRate(t *testing.T) {
	policy := domain.DefaultReorderPolicy()
	for _, rate := range []float64{0, -3} {
		rp := reorderPoint(t, rate, 14, 25, policy)
		require.Zero(t, rp.Units)
		require.Equal(t, SafetyStockNone, rp.Mode)

		packs, err := rp.Packs(10)
		require.NoError(t, err)
		require.Zero(t, packs)
	}
}

func TestReorderPointWeeksOfCover(t *testing.T) {
	policy := domain.DefaultReorderPolicy()
	rp := reorderPoint(t, 2, 14, 0, policy)
	require.Equal(t, SafetyStockWeeks, rp.Mode)
	require.InDelta(t, 28, rp.LeadTimeDemand, 1e-9)
	require.InDelta(t, 28, rp.SafetyStock, 1e-9)
	require.Equal(t, 56, rp.Units)

	packs, err := rp.Packs(10)
	require.NoError(t, err)
	require.Equal(t, 6, packs)
}

func TestReorderPointStatistical(t *testing.T) {
	policy := domain.DefaultReorderPolicy()
	rp := reorderPoint(t, 2, 16, 10, policy)
	require.Equal(t, SafetyStockStatistical, rp.Mode)
	require.Equal(t, 1.65, rp.ZScore)
	require.InDelta(t, 66, rp.SafetyStock, 1e-9)
	require.Equal(t, 98, rp.Units)

	policy.ServiceLevel = 0.99
	rp = reorderPoint(t, 2, 16, 10, policy)
	require.Equal(t, 2.33, rp.ZScore)
	require.Equal(t, 126, rp.Units)
}

func TestReorderPointUsesPolicyLeadTimeWhenUnset(t *testing.T) {
	policy := domain.DefaultReorderPolicy()
	policy.LeadTimeDays = 7
	rp := reorderPoint(t, 1, 0, 0, policy)
	require.Equal(t, 7, rp.LeadTimeDays)
	require.Equal(t, 21, rp.Units)
}

func TestReorderPointMonotonicInRate(t *testing.T) {
	policy := domain.DefaultReorderPolicy()
	prev := -1
	for rate := 0.0; rate <= 50; rate += 0.37 {
		rp := reorderPoint(t, rate, 14, 0, policy)
		require.GreaterOrEqual(t, rp.Units, prev, "rate %.2f", rate)
		prev = rp.Units
	}
}

func TestReorderPointMonotonicInLeadTime(t *testing.T) {
	policy := domain.DefaultReorderPolicy()
	for _, stdDev := range []float64{0, 12.5} {
		for _, rate := range []float64{0.1, 2, 37.5} {
			prev := -1
			for lead := 1; lead <= 120; lead++ {
				rp := reorderPoint(t, rate, lead, stdDev, policy)
				require.GreaterOrEqual(t, rp.Units, prev, "rate %.2f std %.2f lead %d", rate, stdDev, lead)
				prev = rp.Units
			}
		}
	}
}

func TestReorderPointRejectsNonFiniteValues(t *testing.T) {
	policy := domain.DefaultReorderPolicy()

	_, err := CalculateReorderPoint(math.NaN(), 14, 0, policy)
	require.ErrorIs(t, err, domain.ErrOutOfRange)
	_, err = CalculateReorderPoint(2, 14, math.Inf(1), policy)
	require.ErrorIs(t, err, domain.ErrOutOfRange)

	// Finite input whose demand overflows.
	_, err = CalculateReorderPoint(1e308, 14, 0, policy)
	require.ErrorIs(t, err, domain.ErrOutOfRange)

	_, err = UnitsToPacks(math.Inf(1), 10)
	require.ErrorIs(t, err, domain.ErrOutOfRange)
}

func TestUnitsToPacks(t *testing.T) {
	packs, err := UnitsToPacks(20, 10)
	require.NoError(t, err)
	require.Equal(t, 2, packs)

	packs, err = UnitsToPacks(21, 10)
	require.NoError(t, err)
	require.Equal(t, 3, packs)

	// 0.1*3*10 is 3.0000000000000004 in floating point.
	packs, err = UnitsToPacks(0.1*3*10, 3)
	require.NoError(t, err)
	require.Equal(t, 1, packs)

	_, err = UnitsToPacks(20, 0)
	require.ErrorIs(t, err, domain.ErrInvalidPackSize)
	_, err = UnitsToPacks(20, -5)
	require.ErrorIs(t, err, domain.ErrInvalidPackSize)
}
