package usage

import (
	"sort"
	"time"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// WholeMonthsBetween counts calendar months from 'from' to 'to', only
// counting a month once its day and time of day have been reached.
func WholeMonthsBetween(from, to time.Time) int {
	to = to.In(from.Location())
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
	if months > 0 && from.AddDate(0, months, 0).After(to) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// monthStart truncates t to midnight on the first of its month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// monthIndex is the number of calendar months between two month starts.
func monthIndex(start, t time.Time) int {
	return (t.Year()-start.Year())*12 + int(t.Month()-start.Month())
}

// YearMonth formats t as YYYY-MM.
func YearMonth(t time.Time) string {
	return t.Format("2006-01")
}

func sortSnapshots(s []domain.MonthlySnapshot) {
	sort.Slice(s, func(i, j int) bool { return s[i].YearMonth < s[j].YearMonth })
}
