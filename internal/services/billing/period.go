// Package billing advances subscription billing periods and generates
// invoices at period boundaries.
package billing

import (
	"errors"
	"fmt"
	"time"

	"chainpay/internal/models"
)

var ErrInvalidInterval = errors.New("invalid billing interval")

// AddInterval adds count units of intervalType to t with calendar-correct
// arithmetic.
//
// Clamping rule: month and year addition clamp the day-of-month to the last
// day of the target month. Jan 31 + 1 month = Feb 29 in a leap year (Feb 28
// otherwise); Feb 29 + 1 year = Feb 28. Day and week intervals are plain
// day arithmetic and never clamp.
func AddInterval(t time.Time, intervalType string, count int) (time.Time, error) {
	if count < 1 {
		return time.Time{}, fmt.Errorf("%w: count must be >= 1, got %d", ErrInvalidInterval, count)
	}
	switch intervalType {
	case models.IntervalDay:
		return t.AddDate(0, 0, count), nil
	case models.IntervalWeek:
		return t.AddDate(0, 0, 7*count), nil
	case models.IntervalMonth:
		return addMonthsClamped(t, count), nil
	case models.IntervalYear:
		return addMonthsClamped(t, 12*count), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInterval, intervalType)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	total := int(t.Month()) - 1 + months
	year := t.Year() + total/12
	month := time.Month(total%12 + 1)

	day := t.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// day 0 of the next month normalizes to the last day of this month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
