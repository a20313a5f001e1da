package domain

import "strings"

// Tier is the data-sufficiency bucket used to pick an averaging strategy.
type Tier string

const (
	Tier12Month Tier = "12_month"
	Tier6Month  Tier = "6_month"
	Tier3Month  Tier = "3_month"
	TierWeekly  Tier = "weekly"
)

// Confidence tells consumers how much to trust a rate estimate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TierDisplay is the UI-facing description of a tier.
type TierDisplay struct {
	Label      string `json:"label"`
	ShortLabel string `json:"short_label"`
	ColorHint  string `json:"color_hint"`
	Tooltip    string `json:"tooltip"`
}

var tierDisplays = map[Tier]TierDisplay{
	Tier12Month: {
		Label:      "12-Month Weighted Average",
		ShortLabel: "12mo",
		ColorHint:  "green",
		Tooltip:    "Based on 12+ months of order history. The latest 3 months count 1.5x.",
	},
	Tier6Month: {
		Label:      "6-Month Average",
		ShortLabel: "6mo",
		ColorHint:  "blue",
		Tooltip:    "Based on 6-11 months of order history, averaged over the last 6 months.",
	},
	Tier3Month: {
		Label:      "3-Month Average",
		ShortLabel: "3mo",
		ColorHint:  "yellow",
		Tooltip:    "Based on 3+ months of order history, averaged over the last 3 months.",
	},
	TierWeekly: {
		Label:      "Weekly Estimate",
		ShortLabel: "wk",
		ColorHint:  "orange",
		Tooltip:    "Less than 3 months of history. Weekly rate extrapolated to a month; treat as a rough estimate.",
	},
}

var unknownTierDisplay = TierDisplay{
	Label:      "Not Calculated",
	ShortLabel: "n/a",
	ColorHint:  "gray",
	Tooltip:    "Usage has not been calculated for this product yet.",
}

// TierDisplayFor returns the display description for a tier. Unknown tiers
// map to a neutral "not calculated" description.
func TierDisplayFor(tier Tier) TierDisplay {
	if d, ok := tierDisplays[tier]; ok {
		return d
	}
	return unknownTierDisplay
}

// ParseTier returns the tier for a label (case-insensitive). Both the
// underscore and dash spellings are accepted ("12_month", "12-month").
func ParseTier(label string) (Tier, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), "-", "_")
	tier := Tier(normalized)
	_, ok := tierDisplays[tier]
	return tier, ok
}

// StockStatus classifies stock health by weeks of runway.
type StockStatus string

const (
	StockStatusCritical StockStatus = "critical"
	StockStatusLow      StockStatus = "low"
	StockStatusWatch    StockStatus = "watch"
	StockStatusHealthy  StockStatus = "healthy"
	StockStatusUnknown  StockStatus = "unknown"
)

// Trend is the direction of monthly usage over the trailing window.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
	TrendUnknown    Trend = "unknown"
)
