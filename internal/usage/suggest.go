package usage

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

const (
	DefaultTargetWeeks = 8.0
	DefaultLeadWeeks   = 2.0
	// NoUsageWeeksRemaining is reported when stock is on hand but nothing is
	// being consumed.
	NoUsageWeeksRemaining = 999.0
	// MaxQuantity bounds unit and pack counts.
	MaxQuantity = 1e12
)

// SuggestionInput is the input to SuggestReorder.
type SuggestionInput struct {
	MonthlyUsageUnits float64
	CurrentStockUnits float64
	PackSize          int
	// TargetWeeks and LeadWeeks default to 8 and 2 when zero.
	TargetWeeks float64
	LeadWeeks   float64
}

// Suggestion is a recommended order quantity.
type Suggestion struct {
	SuggestedPacks int     `json:"suggested_packs"`
	SuggestedUnits int     `json:"suggested_units"`
	WeeksRemaining float64 `json:"weeks_remaining"`
}

// SuggestReorder sizes an order that restores TargetWeeks of cover after
// LeadWeeks of consumption.
func SuggestReorder(in SuggestionInput) (Suggestion, error) {
	if in.PackSize <= 0 {
		return Suggestion{}, domain.ErrInvalidPackSize
	}
	if !allFinite(in.MonthlyUsageUnits, in.CurrentStockUnits, in.TargetWeeks, in.LeadWeeks) {
		return Suggestion{}, fmt.Errorf("%w: suggestion input", domain.ErrOutOfRange)
	}
	if in.TargetWeeks <= 0 {
		in.TargetWeeks = DefaultTargetWeeks
	}
	if in.LeadWeeks <= 0 {
		in.LeadWeeks = DefaultLeadWeeks
	}

	if in.MonthlyUsageUnits <= 0 {
		out := Suggestion{}
		if in.CurrentStockUnits > 0 {
			out.WeeksRemaining = NoUsageWeeksRemaining
		}
		return out, nil
	}

	weekly := in.MonthlyUsageUnits / WeeksPerMonth
	target := weekly * (in.TargetWeeks + in.LeadWeeks)
	deficit := math.Max(0, target-in.CurrentStockUnits)
	packs, err := wholeCount(deficit / float64(in.PackSize))
	if err != nil {
		return Suggestion{}, fmt.Errorf("suggested packs: %w", err)
	}
	if float64(packs)*float64(in.PackSize) > MaxQuantity {
		return Suggestion{}, fmt.Errorf("%w: suggested units", domain.ErrOutOfRange)
	}

	return Suggestion{
		SuggestedPacks: packs,
		SuggestedUnits: packs * in.PackSize,
		WeeksRemaining: runwayWeeks(in.CurrentStockUnits, weekly, 1),
	}, nil
}

// runwayWeeks is stock over weekly consumption, capped at
// NoUsageWeeksRemaining.
func runwayWeeks(stockUnits, weeklyUnits float64, places int32) float64 {
	weeks := stockUnits / weeklyUnits
	if math.IsNaN(weeks) || weeks >= NoUsageWeeksRemaining {
		return NoUsageWeeksRemaining
	}
	return roundTo(weeks, places)
}

// wholeCount rounds v up to an int. Values that are not finite or exceed
// MaxQuantity return domain.ErrOutOfRange.
func wholeCount(v float64) (int, error) {
	if !allFinite(v) || v > MaxQuantity {
		return 0, fmt.Errorf("%w: %g", domain.ErrOutOfRange, v)
	}
	if v <= 0 {
		return 0, nil
	}
	return int(ceilStable(v)), nil
}

func allFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// roundTo rounds half away from zero. Non-finite values pass through.
func roundTo(v float64, places int32) float64 {
	if !allFinite(v) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
