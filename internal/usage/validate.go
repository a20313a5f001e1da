package usage

import (
	"fmt"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// Severity ranks a validation message.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// StaleAfterDays is how long without transactions before data is stale.
const StaleAfterDays = 90

// Message is a data-quality note attached to a calculation.
type Message struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Text     string   `json:"message"`
}

// Validate inspects a result against its product and reports anomalies
// that make the estimate suspect.
func Validate(result Result, product domain.Product) []Message {
	var msgs []Message
	add := func(sev Severity, code, format string, args ...any) {
		msgs = append(msgs, Message{Severity: sev, Code: code, Text: fmt.Sprintf(format, args...)})
	}

	if result.MonthlyRate < 0 {
		add(SeverityError, "negative_usage", "negative monthly usage %.2f", result.MonthlyRate)
	}
	stock := product.CurrentStockUnits()
	if stock > 0 && result.MonthlyRate > stock*10 {
		add(SeverityWarning, "usage_exceeds_stock", "monthly usage %.0f is more than 10x current stock %.0f", result.MonthlyRate, stock)
	}
	if result.HasData() && result.Confidence == domain.ConfidenceLow {
		add(SeverityWarning, "low_confidence", "estimate based on %d months of history", result.DataMonths)
	}
	if result.Stats.Outliers > 2 {
		add(SeverityWarning, "outliers", "%d outlier months detected", result.Stats.Outliers)
	}
	if product.IsActive && result.MonthlyRate == 0 {
		add(SeverityInfo, "zero_usage", "active product has no recorded usage")
	}
	if result.Stats.CV > 1 {
		add(SeverityInfo, "high_variability", "coefficient of variation %.2f", result.Stats.CV)
	}
	if result.DaysSinceLastActive != nil && *result.DaysSinceLastActive > StaleAfterDays {
		add(SeverityWarning, "stale_data", "no transactions in %d days", *result.DaysSinceLastActive)
	}
	return msgs
}
