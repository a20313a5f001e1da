package usage

import (
	"math"
	"time"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// WeeksRemaining is stock on hand divided by weekly consumption, rounded to
// two places and capped at NoUsageWeeksRemaining. It is nil when there is
// no consumption.
func WeeksRemaining(stockUnits, monthlyUsageUnits float64) *float64 {
	if monthlyUsageUnits <= 0 || !allFinite(stockUnits, monthlyUsageUnits) {
		return nil
	}
	weeks := runwayWeeks(stockUnits, monthlyUsageUnits/WeeksPerMonth, 2)
	return &weeks
}

// ClassifyStock maps weeks of runway to a status using the policy's
// thresholds. Unknown runway is StockStatusUnknown.
func ClassifyStock(weeks *float64, policy domain.ReorderPolicy) domain.StockStatus {
	if weeks == nil {
		return domain.StockStatusUnknown
	}
	switch w := *weeks; {
	case w <= policy.CriticalWeeks:
		return domain.StockStatusCritical
	case w <= policy.LowWeeks:
		return domain.StockStatusLow
	case w <= policy.WatchWeeks:
		return domain.StockStatusWatch
	default:
		return domain.StockStatusHealthy
	}
}

// StockoutProjection estimates when stock runs out.
type StockoutProjection struct {
	DaysUntilStockout float64   `json:"days_until_stockout"`
	StockoutDate      time.Time `json:"stockout_date"`
	EarliestDate      time.Time `json:"earliest_date"`
	LatestDate        time.Time `json:"latest_date"`
	Confidence        float64   `json:"confidence"`
}

// ProjectStockout projects a stockout date at the current daily rate. The
// interval is +/- 1.96 * (sigma_daily / rate) * sqrt(days), where
// sigma_daily is the monthly standard deviation spread over a month.
// Without variability the interval collapses and confidence is 0.5.
func ProjectStockout(now time.Time, stockUnits, dailyRate, monthlyStdDev float64) *StockoutProjection {
	if dailyRate <= 0 || stockUnits <= 0 || !allFinite(monthlyStdDev) {
		return nil
	}
	days := stockUnits / dailyRate
	if !allFinite(days) || days > maxProjectionDays {
		return nil
	}
	p := &StockoutProjection{
		DaysUntilStockout: roundTo(days, 1),
		StockoutDate:      addDays(now, days),
		Confidence:        0.5,
	}

	margin := 0.0
	if monthlyStdDev > 0 {
		sigmaDaily := monthlyStdDev / DaysPerMonth
		margin = 1.96 * (sigmaDaily / dailyRate) * math.Sqrt(days)
		p.Confidence = roundTo(1/(1+margin/days), 2)
	}
	p.EarliestDate = addDays(now, math.Max(0, days-margin))
	p.LatestDate = addDays(now, days+margin)
	return p
}

// maxProjectionDays keeps projected dates inside time.Duration's range.
const maxProjectionDays = 100 * 365

func addDays(t time.Time, days float64) time.Time {
	days = math.Min(days, 2*maxProjectionDays)
	return t.Add(time.Duration(days * float64(24*time.Hour)))
}
