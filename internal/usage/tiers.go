package usage

import (
	"fmt"
	"strings"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

const (
	// WeeksPerMonth is the average number of weeks in a month.
	WeeksPerMonth = 4.33
	// DaysPerMonth is the average number of days in a month.
	DaysPerMonth = 30.44
	// RecentWeight is applied to the most recent RecentMonths buckets.
	RecentWeight = 1.5
	// RecentMonths is how many trailing months receive RecentWeight.
	RecentMonths = 3
)

// Strategy is the averaging technique a tier uses.
type Strategy string

const (
	StrategyWeightedMonthly Strategy = "weighted_monthly"
	StrategyFlatMonthly     Strategy = "flat_monthly"
	StrategyWeeklyRate      Strategy = "weekly_rate"
)

// TierRule is one row of a tier table. A rule applies when the product has
// at least MinMonths whole months of history.
type TierRule struct {
	Tier         domain.Tier
	MinMonths    int
	WindowMonths int
	Strategy     Strategy
	Confidence   domain.Confidence
}

// TierScheme is an ordered tier table, most demanding rule first. The last
// rule must have MinMonths 0 and acts as the fallback.
type TierScheme struct {
	Name  string
	Rules []TierRule
}

const (
	SchemeClassic  = "classic"
	SchemeGranular = "granular"
)

// ClassicScheme is the 12-month / 3-month / weekly table.
var ClassicScheme = TierScheme{
	Name: SchemeClassic,
	Rules: []TierRule{
		{Tier: domain.Tier12Month, MinMonths: 12, WindowMonths: 12, Strategy: StrategyWeightedMonthly, Confidence: domain.ConfidenceHigh},
		{Tier: domain.Tier3Month, MinMonths: 3, WindowMonths: 3, Strategy: StrategyFlatMonthly, Confidence: domain.ConfidenceMedium},
		{Tier: domain.TierWeekly, MinMonths: 0, Strategy: StrategyWeeklyRate, Confidence: domain.ConfidenceLow},
	},
}

// GranularScheme adds a 6-month tier between the 12-month and 3-month tiers.
var GranularScheme = TierScheme{
	Name: SchemeGranular,
	Rules: []TierRule{
		{Tier: domain.Tier12Month, MinMonths: 12, WindowMonths: 12, Strategy: StrategyWeightedMonthly, Confidence: domain.ConfidenceHigh},
		{Tier: domain.Tier6Month, MinMonths: 6, WindowMonths: 6, Strategy: StrategyFlatMonthly, Confidence: domain.ConfidenceMedium},
		{Tier: domain.Tier3Month, MinMonths: 3, WindowMonths: 3, Strategy: StrategyFlatMonthly, Confidence: domain.ConfidenceMedium},
		{Tier: domain.TierWeekly, MinMonths: 0, Strategy: StrategyWeeklyRate, Confidence: domain.ConfidenceLow},
	},
}

// SchemeByName resolves a configured scheme name. An empty name selects
// the classic scheme.
func SchemeByName(name string) (TierScheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemeClassic:
		return ClassicScheme, nil
	case SchemeGranular:
		return GranularScheme, nil
	default:
		return TierScheme{}, fmt.Errorf("unknown tier scheme %q", name)
	}
}

// Validate checks the table is ordered and ends with a fallback rule.
func (s TierScheme) Validate() error {
	if len(s.Rules) == 0 {
		return fmt.Errorf("tier scheme %s has no rules", s.Name)
	}
	for i, rule := range s.Rules {
		if rule.Strategy != StrategyWeeklyRate && rule.WindowMonths <= 0 {
			return fmt.Errorf("tier scheme %s: rule %s needs a window", s.Name, rule.Tier)
		}
		if i > 0 && rule.MinMonths >= s.Rules[i-1].MinMonths {
			return fmt.Errorf("tier scheme %s: rules must be ordered by descending min months", s.Name)
		}
	}
	if last := s.Rules[len(s.Rules)-1]; last.MinMonths != 0 {
		return fmt.Errorf("tier scheme %s: last rule must be a fallback", s.Name)
	}
	return nil
}

// Select returns the first rule whose history requirement is met.
func (s TierScheme) Select(historyMonths int) TierRule {
	for _, rule := range s.Rules {
		if historyMonths >= rule.MinMonths {
			return rule
		}
	}
	return s.Fallback()
}

// Fallback is the rule used when there is little or no history.
func (s TierScheme) Fallback() TierRule {
	return s.Rules[len(s.Rules)-1]
}
