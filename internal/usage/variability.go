package usage

import (
	"math"
	"sort"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// MonthlyStdDev is the population standard deviation of monthly totals.
// Fewer than two months with consumption yields 0.
func MonthlyStdDev(totals []float64) float64 {
	withData := 0
	for _, v := range totals {
		if v != 0 {
			withData++
		}
	}
	if withData < 2 {
		return 0
	}
	mean := sum(totals) / float64(len(totals))
	variance := 0.0
	for _, v := range totals {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(totals)))
}

// Descriptive summarizes the shape of a monthly series.
type Descriptive struct {
	Months   int          `json:"months"`
	Mean     float64      `json:"mean"`
	CV       float64      `json:"cv"`
	Outliers int          `json:"outliers"`
	Trend    domain.Trend `json:"trend"`
	Slope    float64      `json:"slope"`
}

// Describe computes dispersion, outlier and trend figures for a monthly
// series, oldest month first.
func Describe(series []float64) Descriptive {
	d := Descriptive{Months: len(series), Trend: domain.TrendUnknown}
	if len(series) == 0 {
		return d
	}
	d.Mean = sum(series) / float64(len(series))
	d.CV = CoefficientOfVariation(series)
	d.Outliers = CountOutliers(series)
	d.Trend, d.Slope = LinearTrend(series)
	return d
}

// CoefficientOfVariation is sample standard deviation over mean. A zero
// mean or a single value yields 0.
func CoefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := sum(values) / float64(len(values))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance/float64(len(values)-1)) / mean
}

// CountOutliers counts values outside 1.5 IQR of the quartiles. At least
// four values are needed.
func CountOutliers(values []float64) int {
	if len(values) < 4 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	n := 0
	for _, v := range values {
		if v < lower || v > upper {
			n++
		}
	}
	return n
}

// quantile uses linear interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// LinearTrend fits a least-squares line through the series. A slope within
// 5% of the mean is stable. Fewer than three points is unknown.
func LinearTrend(series []float64) (domain.Trend, float64) {
	n := len(series)
	if n < 3 {
		return domain.TrendUnknown, 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range series {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	fn := float64(n)
	denom := fn*sxx - sx*sx
	if denom == 0 {
		return domain.TrendUnknown, 0
	}
	slope := (fn*sxy - sx*sy) / denom
	mean := sy / fn

	switch {
	case math.Abs(slope) < 0.05*math.Abs(mean) || (mean == 0 && slope == 0):
		return domain.TrendStable, slope
	case slope > 0:
		return domain.TrendIncreasing, slope
	default:
		return domain.TrendDecreasing, slope
	}
}
