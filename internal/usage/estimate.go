package usage

import (
	"time"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// Estimate is the full analysis of one product: usage rate, reorder point,
// runway and data-quality notes.
type Estimate struct {
	ProductID         string            `json:"product_id"`
	ClientID          string            `json:"client_id"`
	MonthlyUsageUnits float64           `json:"monthly_usage_units"`
	MonthlyUsagePacks float64           `json:"monthly_usage_packs"`
	DailyRate         float64           `json:"daily_rate"`
	WeeklyRate        float64           `json:"weekly_rate"`
	Tier              domain.Tier       `json:"tier"`
	Confidence        domain.Confidence `json:"confidence"`
	ConfidenceScore   float64           `json:"confidence_score"`
	Strategy          Strategy          `json:"period_basis"`
	SampleSize        int               `json:"sample_size"`
	DataMonths        int               `json:"data_months"`
	PeriodStart       time.Time         `json:"period_start"`
	PeriodEnd         time.Time         `json:"period_end"`
	TotalUnits        float64           `json:"total_units"`
	StdDev            float64           `json:"std_dev"`
	Stats             Descriptive       `json:"stats"`

	LastTransactionAt        *time.Time `json:"last_transaction_at,omitempty"`
	DaysSinceLastTransaction *int       `json:"days_since_last_transaction,omitempty"`

	LeadTimeSource    domain.LeadTimeSource `json:"lead_time_source"`
	ReorderPoint      ReorderPoint          `json:"reorder_point"`
	ReorderPointPacks int                   `json:"reorder_point_packs"`

	CurrentStockUnits float64             `json:"current_stock_units"`
	WeeksRemaining    *float64            `json:"weeks_remaining,omitempty"`
	StockStatus       domain.StockStatus  `json:"stock_status"`
	Suggestion        Suggestion          `json:"suggestion"`
	Stockout          *StockoutProjection `json:"stockout,omitempty"`
	Messages          []Message           `json:"messages,omitempty"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// AnalyzeOptions tunes the suggestion horizon. Zero values use defaults.
type AnalyzeOptions struct {
	TargetWeeks float64
	LeadWeeks   float64
}

// Analyze derives reorder and runway figures for product from a usage
// result. The policy must already be resolved. A non-positive pack size
// returns domain.ErrInvalidPackSize.
func Analyze(result Result, product domain.Product, policy domain.ReorderPolicy, now time.Time, opts AnalyzeOptions) (Estimate, error) {
	if product.PackSize <= 0 {
		return Estimate{}, domain.ErrInvalidPackSize
	}

	leadDays, source := domain.EffectiveLeadTime(product, &policy)
	rp, err := CalculateReorderPoint(result.DailyRate, leadDays, result.StdDev, policy)
	if err != nil {
		return Estimate{}, err
	}
	rpPacks, err := rp.Packs(product.PackSize)
	if err != nil {
		return Estimate{}, err
	}

	stock := product.CurrentStockUnits()
	suggestion, err := SuggestReorder(SuggestionInput{
		MonthlyUsageUnits: result.MonthlyRate,
		CurrentStockUnits: stock,
		PackSize:          product.PackSize,
		TargetWeeks:       opts.TargetWeeks,
		LeadWeeks:         opts.LeadWeeks,
	})
	if err != nil {
		return Estimate{}, err
	}

	weeks := WeeksRemaining(stock, result.MonthlyRate)

	return Estimate{
		ProductID:                product.ID,
		ClientID:                 product.ClientID,
		MonthlyUsageUnits:        roundTo(result.MonthlyRate, 4),
		MonthlyUsagePacks:        roundTo(result.MonthlyRate/float64(product.PackSize), 4),
		DailyRate:                roundTo(result.DailyRate, 6),
		WeeklyRate:               roundTo(result.WeeklyRate, 6),
		Tier:                     result.Tier,
		Confidence:               result.Confidence,
		ConfidenceScore:          ConfidenceScore(result),
		Strategy:                 result.Strategy,
		SampleSize:               result.SampleSize,
		DataMonths:               result.DataMonths,
		PeriodStart:              result.PeriodStart,
		PeriodEnd:                result.PeriodEnd,
		TotalUnits:               roundTo(result.TotalUnits, 4),
		StdDev:                   roundTo(result.StdDev, 4),
		Stats:                    result.Stats,
		LastTransactionAt:        result.LastTransactionAt,
		DaysSinceLastTransaction: result.DaysSinceLastActive,
		LeadTimeSource:           source,
		ReorderPoint:             rp,
		ReorderPointPacks:        rpPacks,
		CurrentStockUnits:        stock,
		WeeksRemaining:           weeks,
		StockStatus:              ClassifyStock(weeks, policy),
		Suggestion:               suggestion,
		Stockout:                 ProjectStockout(now, stock, result.DailyRate, result.StdDev),
		Messages:                 Validate(result, product),
		CalculatedAt:             now,
	}, nil
}

// Derived returns the product fields a recalculation persists.
func (e Estimate) Derived() domain.DerivedUsage {
	return domain.DerivedUsage{
		ProductID:             e.ProductID,
		MonthlyUsageUnits:     e.MonthlyUsageUnits,
		MonthlyUsagePacks:     e.MonthlyUsagePacks,
		DataMonths:            e.DataMonths,
		Tier:                  e.Tier,
		Confidence:            e.Confidence,
		ConfidenceScore:       e.ConfidenceScore,
		ReorderPointPacks:     e.ReorderPointPacks,
		WeeksRemaining:        e.WeeksRemaining,
		StockStatus:           e.StockStatus,
		Trend:                 e.Stats.Trend,
		SuggestedReorderPacks: e.Suggestion.SuggestedPacks,
		CalculatedAt:          e.CalculatedAt,
	}
}

// Metric returns the usage metric record for this calculation period.
func (e Estimate) Metric() domain.UsageMetric {
	return domain.UsageMetric{
		ProductID:          e.ProductID,
		PeriodType:         e.Tier,
		PeriodStart:        e.PeriodStart,
		PeriodEnd:          e.PeriodEnd,
		TotalConsumedUnits: e.TotalUnits,
		DailyRate:          e.DailyRate,
		WeeklyRate:         e.WeeklyRate,
		SampleSize:         e.SampleSize,
		CalculatedAt:       e.CalculatedAt,
	}
}

// MonthlySnapshots builds one snapshot per calendar month with completed
// transactions, each from that month's transactions only. Months follow
// now's location and transactions after now are left out, as in
// Calculator.CalculateAt.
func MonthlySnapshots(product domain.Product, txns []domain.Transaction, now time.Time) []domain.MonthlySnapshot {
	totals := MonthlyTotals(completedUpTo(txns, now))
	out := make([]domain.MonthlySnapshot, 0, len(totals))
	for month, total := range totals {
		snap := domain.MonthlySnapshot{
			ProductID:        product.ID,
			YearMonth:        month,
			ConsumedUnits:    roundTo(total.Units, 4),
			TransactionCount: total.Count,
			CalculatedAt:     now,
		}
		if product.PackSize > 0 {
			snap.ConsumedPacks = roundTo(total.Units/float64(product.PackSize), 4)
		}
		out = append(out, snap)
	}
	sortSnapshots(out)
	return out
}
