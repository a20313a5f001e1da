package domain

import (
	"strings"
	"time"
)

// OrderStatusCompleted is the only transaction status that feeds usage.
const OrderStatusCompleted = "completed"

// Transaction is an immutable fulfillment record for one product.
type Transaction struct {
	ID            string    `json:"id" db:"id"`
	ProductID     string    `json:"product_id" db:"product_id"`
	QuantityUnits float64   `json:"quantity_units" db:"quantity_units"`
	DateSubmitted time.Time `json:"date_submitted" db:"date_submitted"`
	OrderStatus   string    `json:"order_status" db:"order_status"`
}

// IsCompleted reports whether the transaction counts toward consumption.
func (t Transaction) IsCompleted() bool {
	return strings.EqualFold(strings.TrimSpace(t.OrderStatus), OrderStatusCompleted)
}

// Product is the inventory record the engine reads and annotates.
type Product struct {
	ID                string  `json:"id" db:"id"`
	ClientID          string  `json:"client_id" db:"client_id"`
	ProductCode       string  `json:"product_code" db:"product_id"`
	Name              string  `json:"name" db:"name"`
	PackSize          int     `json:"pack_size" db:"pack_size"`
	CurrentStockPacks float64 `json:"current_stock_packs" db:"current_stock_packs"`
	LeadTimeDays      *int    `json:"lead_time_days,omitempty" db:"total_lead_days"`
	ItemType          string  `json:"item_type" db:"item_type"`
	IsActive          bool    `json:"is_active" db:"is_active"`

	MonthlyUsageUnits     *float64   `json:"monthly_usage_units,omitempty" db:"monthly_usage_units"`
	MonthlyUsagePacks     *float64   `json:"monthly_usage_packs,omitempty" db:"monthly_usage_packs"`
	CalculationTier       *string    `json:"usage_calculation_tier,omitempty" db:"usage_calculation_tier"`
	UsageConfidence       *string    `json:"usage_confidence,omitempty" db:"usage_confidence"`
	ConfidenceScore       *float64   `json:"usage_confidence_score,omitempty" db:"usage_confidence_score"`
	ReorderPointPacks     *int       `json:"reorder_point_packs,omitempty" db:"reorder_point_packs"`
	UsageLastCalculatedAt *time.Time `json:"usage_last_calculated,omitempty" db:"usage_last_calculated"`
}

// CurrentStockUnits converts the pack-denominated stock to base units.
func (p Product) CurrentStockUnits() float64 {
	return p.CurrentStockPacks * float64(p.PackSize)
}

// DerivedUsage is the set of product fields written by a recalculation.
type DerivedUsage struct {
	ProductID             string
	MonthlyUsageUnits     float64
	MonthlyUsagePacks     float64
	DataMonths            int
	Tier                  Tier
	Confidence            Confidence
	ConfidenceScore       float64
	ReorderPointPacks     int
	WeeksRemaining        *float64
	StockStatus           StockStatus
	Trend                 Trend
	SuggestedReorderPacks int
	CalculatedAt          time.Time
}

// UsageMetric is a persisted snapshot of one calculation run, keyed by
// (product, period type, period start).
type UsageMetric struct {
	ProductID          string    `json:"product_id" db:"product_id"`
	PeriodType         Tier      `json:"period_type" db:"period_type"`
	PeriodStart        time.Time `json:"period_start" db:"period_start"`
	PeriodEnd          time.Time `json:"period_end" db:"period_end"`
	TotalConsumedUnits float64   `json:"total_consumed_units" db:"total_consumed_units"`
	DailyRate          float64   `json:"daily_rate" db:"daily_rate"`
	WeeklyRate         float64   `json:"weekly_rate" db:"weekly_rate"`
	SampleSize         int       `json:"sample_size" db:"sample_size"`
	CalculatedAt       time.Time `json:"calculated_at" db:"calculated_at"`
}

// MonthlySnapshot records a single calendar month's consumption. It is
// built only from that month's own transactions.
type MonthlySnapshot struct {
	ProductID        string    `json:"product_id" db:"product_id"`
	YearMonth        string    `json:"year_month" db:"year_month"`
	ConsumedUnits    float64   `json:"consumed_units" db:"consumed_units"`
	ConsumedPacks    float64   `json:"consumed_packs" db:"consumed_packs"`
	TransactionCount int       `json:"transaction_count" db:"transaction_count"`
	CalculatedAt     time.Time `json:"calculated_at" db:"calculated_at"`
}

// ConfidenceStats is the per-client distribution of usage confidence.
// AvgConfidenceScore averages products that have a score; Tiers counts
// products by calculation tier.
type ConfidenceStats struct {
	TotalProducts      int          `json:"total_products" db:"total_products"`
	ProductsWithUsage  int          `json:"products_with_usage" db:"products_with_usage"`
	HighConfidence     int          `json:"high_confidence_count" db:"high_confidence_count"`
	MediumConfidence   int          `json:"medium_confidence_count" db:"medium_confidence_count"`
	LowConfidence      int          `json:"low_confidence_count" db:"low_confidence_count"`
	AvgConfidenceScore float64      `json:"avg_confidence_score" db:"avg_confidence_score"`
	Tiers              map[Tier]int `json:"calculation_tiers" db:"-"`
}
