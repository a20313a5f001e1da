package usage

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// DefaultZScore is used for service levels outside the known table.
const DefaultZScore = 1.65

var serviceLevelZScores = []struct {
	level float64
	z     float64
}{
	{0.90, 1.28},
	{0.95, 1.65},
	{0.975, 1.96},
	{0.99, 2.33},
	{0.999, 3.09},
}

// ZScore maps a service level to its z-score. The second return is false
// when the level is not in the table and DefaultZScore was used.
func ZScore(serviceLevel float64) (float64, bool) {
	for _, entry := range serviceLevelZScores {
		if math.Abs(entry.level-serviceLevel) < 1e-9 {
			return entry.z, true
		}
	}
	return DefaultZScore, false
}

// SafetyStockMode names the formula used for safety stock.
type SafetyStockMode string

const (
	SafetyStockStatistical SafetyStockMode = "statistical"
	SafetyStockWeeks       SafetyStockMode = "weeks_of_cover"
	SafetyStockNone        SafetyStockMode = "none"
)

// ReorderPoint is the stock level, in units, at which to reorder.
type ReorderPoint struct {
	LeadTimeDays   int             `json:"lead_time_days"`
	LeadTimeDemand float64         `json:"lead_time_demand"`
	SafetyStock    float64         `json:"safety_stock"`
	Mode           SafetyStockMode `json:"safety_stock_mode"`
	ZScore         float64         `json:"z_score,omitempty"`
	Units          int             `json:"units"`
}

// Packs converts the reorder point to whole packs, rounding up.
func (r ReorderPoint) Packs(packSize int) (int, error) {
	return UnitsToPacks(float64(r.Units), packSize)
}

// CalculateReorderPoint computes lead-time demand plus safety stock. With a
// positive monthly standard deviation safety stock is z * sigma *
// sqrt(lead days); otherwise it is the policy's weeks of daily demand.
// A non-positive daily rate always yields zero. Inputs or results that are
// not finite return domain.ErrOutOfRange.
func CalculateReorderPoint(dailyRate float64, leadTimeDays int, stdDev float64, policy domain.ReorderPolicy) (ReorderPoint, error) {
	if leadTimeDays <= 0 {
		leadTimeDays = policy.LeadTimeDays
	}
	rp := ReorderPoint{LeadTimeDays: leadTimeDays, Mode: SafetyStockNone}
	if !allFinite(dailyRate, stdDev) {
		return rp, fmt.Errorf("%w: reorder point input", domain.ErrOutOfRange)
	}
	if dailyRate <= 0 || leadTimeDays <= 0 {
		return rp, nil
	}

	rp.LeadTimeDemand = dailyRate * float64(leadTimeDays)
	if stdDev > 0 {
		z, known := ZScore(policy.ServiceLevel)
		if !known {
			log.Warn().
				Float64("service_level", policy.ServiceLevel).
				Float64("z_score", z).
				Msg("Unknown service level, using default z-score")
		}
		rp.ZScore = z
		rp.SafetyStock = z * stdDev * math.Sqrt(float64(leadTimeDays))
		rp.Mode = SafetyStockStatistical
	} else {
		rp.SafetyStock = dailyRate * 7 * policy.SafetyStockWeeks
		rp.Mode = SafetyStockWeeks
	}

	units, err := wholeCount(rp.LeadTimeDemand + rp.SafetyStock)
	if err != nil {
		return ReorderPoint{LeadTimeDays: leadTimeDays, Mode: SafetyStockNone}, fmt.Errorf("reorder point: %w", err)
	}
	rp.Units = units
	return rp, nil
}

// UnitsToPacks rounds units up to whole packs.
func UnitsToPacks(units float64, packSize int) (int, error) {
	if packSize <= 0 {
		return 0, domain.ErrInvalidPackSize
	}
	return wholeCount(units / float64(packSize))
}

// ceilStable rounds up after trimming floating point noise, so 3.0000000001
// is treated as 3.
func ceilStable(v float64) float64 {
	return math.Ceil(math.Round(v*1e9) / 1e9)
}
