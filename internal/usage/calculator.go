package usage

import (
	"sort"
	"time"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// Result is the usage estimate for one product.
type Result struct {
	ProductID   string
	MonthlyRate float64
	DailyRate   float64
	WeeklyRate  float64
	Tier        domain.Tier
	Confidence  domain.Confidence
	Strategy    Strategy

	// SampleSize is the number of transactions inside the tier's window.
	SampleSize int
	// DataMonths is whole months between the oldest transaction and now.
	DataMonths  int
	PeriodStart time.Time
	PeriodEnd   time.Time
	TotalUnits  float64

	// MonthlyTotals holds the window's buckets, oldest first. Only set for
	// monthly strategies.
	MonthlyTotals []float64
	// StdDev is the population standard deviation of MonthlyTotals for the
	// weighted tier, zero otherwise.
	StdDev float64
	Stats  Descriptive

	LastTransactionAt   *time.Time
	DaysSinceLastActive *int
}

// HasData reports whether any transaction contributed to the estimate.
func (r Result) HasData() bool {
	return r.LastTransactionAt != nil
}

// Calculator derives tiered usage rates from transaction history.
type Calculator struct {
	scheme TierScheme
	now    func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCalculator builds a calculator over the given scheme.
func NewCalculator(scheme TierScheme, opts ...Option) *Calculator {
	if len(scheme.Rules) == 0 {
		scheme = ClassicScheme
	}
	c := &Calculator{scheme: scheme, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scheme returns the tier table in use.
func (c *Calculator) Scheme() TierScheme {
	return c.scheme
}

// Now returns the calculator's current time.
func (c *Calculator) Now() time.Time {
	return c.now()
}

// Calculate estimates usage for productID at the calculator's current time.
func (c *Calculator) Calculate(productID string, txns []domain.Transaction) Result {
	return c.CalculateAt(productID, txns, c.now())
}

// CalculateAt estimates usage as of now. Non-completed transactions and
// transactions dated after now are ignored.
func (c *Calculator) CalculateAt(productID string, txns []domain.Transaction, now time.Time) Result {
	history := completedUpTo(txns, now)

	if len(history) == 0 {
		fallback := c.scheme.Fallback()
		start := monthStart(now)
		return Result{
			ProductID:   productID,
			Tier:        fallback.Tier,
			Confidence:  domain.ConfidenceLow,
			Strategy:    fallback.Strategy,
			PeriodStart: start,
			PeriodEnd:   start,
			Stats:       Descriptive{Trend: domain.TrendUnknown},
		}
	}

	oldest := history[0].DateSubmitted
	newest := history[len(history)-1].DateSubmitted
	months := WholeMonthsBetween(oldest, now)
	rule := c.scheme.Select(months)

	result := Result{
		ProductID:         productID,
		Tier:              rule.Tier,
		Confidence:        rule.Confidence,
		Strategy:          rule.Strategy,
		DataMonths:        months,
		LastTransactionAt: &newest,
	}
	days := int(now.Sub(newest).Hours() / 24)
	result.DaysSinceLastActive = &days

	switch rule.Strategy {
	case StrategyWeightedMonthly:
		buckets, start, end, count := monthlyBuckets(history, now, rule.WindowMonths)
		result.MonthlyRate = weightedMean(buckets)
		result.MonthlyTotals = buckets
		result.StdDev = MonthlyStdDev(buckets)
		result.SampleSize = count
		result.TotalUnits = sum(buckets)
		result.PeriodStart, result.PeriodEnd = start, end
	case StrategyFlatMonthly:
		buckets, start, end, count := monthlyBuckets(history, now, rule.WindowMonths)
		result.TotalUnits = sum(buckets)
		result.MonthlyRate = result.TotalUnits / float64(rule.WindowMonths)
		result.MonthlyTotals = buckets
		result.SampleSize = count
		result.PeriodStart, result.PeriodEnd = start, end
	default:
		total := 0.0
		for _, txn := range history {
			total += txn.QuantityUnits
		}
		weeks := newest.Sub(oldest).Hours() / (24 * 7)
		if weeks < 1 {
			weeks = 1
		}
		result.MonthlyRate = total / weeks * WeeksPerMonth
		result.TotalUnits = total
		result.SampleSize = len(history)
		result.PeriodStart, result.PeriodEnd = oldest, newest
	}

	if result.MonthlyRate < 0 {
		result.MonthlyRate = 0
	}
	result.DailyRate = result.MonthlyRate / DaysPerMonth
	result.WeeklyRate = result.DailyRate * 7
	result.Stats = Describe(historySeries(history, now, 12))
	return result
}

// MonthlyTotals aggregates completed transactions by calendar month.
func MonthlyTotals(txns []domain.Transaction) map[string]MonthTotal {
	out := make(map[string]MonthTotal)
	for _, txn := range txns {
		if !txn.IsCompleted() {
			continue
		}
		key := YearMonth(txn.DateSubmitted)
		entry := out[key]
		entry.Units += txn.QuantityUnits
		entry.Count++
		out[key] = entry
	}
	return out
}

// MonthTotal is the consumption within one calendar month.
type MonthTotal struct {
	Units float64
	Count int
}

func completedUpTo(txns []domain.Transaction, now time.Time) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns))
	for _, txn := range txns {
		if !txn.IsCompleted() || txn.DateSubmitted.After(now) {
			continue
		}
		txn.DateSubmitted = txn.DateSubmitted.In(now.Location())
		out = append(out, txn)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateSubmitted.Before(out[j].DateSubmitted)
	})
	return out
}

// monthlyBuckets sums history into window dense calendar-month buckets
// ending with the month containing now. Months without transactions are 0.
func monthlyBuckets(history []domain.Transaction, now time.Time, window int) ([]float64, time.Time, time.Time, int) {
	current := monthStart(now)
	start := current.AddDate(0, -(window - 1), 0)
	end := current.AddDate(0, 1, 0)

	buckets := make([]float64, window)
	count := 0
	for _, txn := range history {
		if txn.DateSubmitted.Before(start) || !txn.DateSubmitted.Before(end) {
			continue
		}
		idx := monthIndex(start, monthStart(txn.DateSubmitted))
		if idx < 0 || idx >= window {
			continue
		}
		buckets[idx] += txn.QuantityUnits
		count++
	}
	return buckets, start, end, count
}

// historySeries returns dense monthly totals from the oldest transaction's
// month (capped at maxMonths back) through the current month.
func historySeries(history []domain.Transaction, now time.Time, maxMonths int) []float64 {
	if len(history) == 0 {
		return nil
	}
	span := monthIndex(monthStart(history[0].DateSubmitted), monthStart(now)) + 1
	if span > maxMonths {
		span = maxMonths
	}
	if span < 1 {
		span = 1
	}
	buckets, _, _, _ := monthlyBuckets(history, now, span)
	return buckets
}

func weightedMean(buckets []float64) float64 {
	var weighted, weights float64
	for i, v := range buckets {
		w := 1.0
		if i >= len(buckets)-RecentMonths {
			w = RecentWeight
		}
		weighted += v * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
