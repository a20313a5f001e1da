package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultLeadTimeDays     = 14
	DefaultSafetyStockWeeks = 2.0
	DefaultServiceLevel     = 0.95
	DefaultCriticalWeeks    = 2.0
	DefaultLowWeeks         = 4.0
	DefaultWatchWeeks       = 8.0
)

// ReorderPolicy is the validated, fully-defaulted client reorder setting.
type ReorderPolicy struct {
	LeadTimeDays     int     `json:"lead_time_days" validate:"gt=0"`
	SafetyStockWeeks float64 `json:"safety_stock_weeks" validate:"gte=0"`
	ServiceLevel     float64 `json:"service_level" validate:"gt=0,lt=1"`
	CriticalWeeks    float64 `json:"critical_weeks" validate:"gte=0"`
	LowWeeks         float64 `json:"low_weeks" validate:"gtefield=CriticalWeeks"`
	WatchWeeks       float64 `json:"watch_weeks" validate:"gtefield=LowWeeks"`
}

// DefaultReorderPolicy returns the documented defaults.
func DefaultReorderPolicy() ReorderPolicy {
	return ReorderPolicy{
		LeadTimeDays:     DefaultLeadTimeDays,
		SafetyStockWeeks: DefaultSafetyStockWeeks,
		ServiceLevel:     DefaultServiceLevel,
		CriticalWeeks:    DefaultCriticalWeeks,
		LowWeeks:         DefaultLowWeeks,
		WatchWeeks:       DefaultWatchWeeks,
	}
}

// PolicySettings is the raw, nullable client configuration as stored.
type PolicySettings struct {
	ClientID         string   `db:"client_id"`
	LeadTimeDays     *int     `db:"reorder_lead_days"`
	SafetyStockWeeks *float64 `db:"safety_stock_weeks"`
	ServiceLevel     *float64 `db:"service_level"`
	CriticalWeeks    *float64 `db:"critical_weeks"`
	LowWeeks         *float64 `db:"low_weeks"`
	WatchWeeks       *float64 `db:"watch_weeks"`
}

var policyValidate = validator.New()

// ResolvePolicy fills missing settings from defaults and validates the
// result once, so calculators never default ad hoc.
func ResolvePolicy(settings PolicySettings, defaults ReorderPolicy) (ReorderPolicy, error) {
	policy := defaults
	if settings.LeadTimeDays != nil {
		policy.LeadTimeDays = *settings.LeadTimeDays
	}
	if settings.SafetyStockWeeks != nil {
		policy.SafetyStockWeeks = *settings.SafetyStockWeeks
	}
	if settings.ServiceLevel != nil {
		policy.ServiceLevel = *settings.ServiceLevel
	}
	if settings.CriticalWeeks != nil {
		policy.CriticalWeeks = *settings.CriticalWeeks
	}
	if settings.LowWeeks != nil {
		policy.LowWeeks = *settings.LowWeeks
	}
	if settings.WatchWeeks != nil {
		policy.WatchWeeks = *settings.WatchWeeks
	}

	if err := ValidatePolicy(policy); err != nil {
		return ReorderPolicy{}, err
	}
	return policy, nil
}

// ValidatePolicy checks a policy against its field constraints.
func ValidatePolicy(policy ReorderPolicy) error {
	if err := policyValidate.Struct(policy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return nil
}

// LeadTimeSource reports where an effective lead time came from.
type LeadTimeSource string

const (
	LeadTimeFromProduct LeadTimeSource = "product"
	LeadTimeFromClient  LeadTimeSource = "client_config"
	LeadTimeFromDefault LeadTimeSource = "default"
)

// EffectiveLeadTime picks the product override, then the client policy,
// then the default.
func EffectiveLeadTime(product Product, policy *ReorderPolicy) (int, LeadTimeSource) {
	if product.LeadTimeDays != nil && *product.LeadTimeDays > 0 {
		return *product.LeadTimeDays, LeadTimeFromProduct
	}
	if policy != nil && policy.LeadTimeDays > 0 {
		return policy.LeadTimeDays, LeadTimeFromClient
	}
	return DefaultLeadTimeDays, LeadTimeFromDefault
}
