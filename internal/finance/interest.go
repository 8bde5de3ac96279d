// Package finance holds the accrual arithmetic used by the loan and credit
// screens. Every function is pure: the reference instant is always passed in
// by the caller, nothing is read from the wall clock here.
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	dayLength    = 24 * time.Hour
	daysPerYear  = 365
	monthsInYear = 12
)

var (
	yearBasisDays  = decimal.NewFromInt(100 * daysPerYear)
	yearBasisMonth = decimal.NewFromInt(100 * monthsInYear)
)

// DaysBetween returns the whole days elapsed from start to end. A period that
// runs backwards yields 0.
func DaysBetween(start, end time.Time) int64 {
	days := int64(end.Sub(start) / dayLength)
	if days < 0 {
		return 0
	}
	return days
}

// SimpleInterest accrues principal at an annual percentage rate over the days
// between start and end, on an actual/365 basis. The result is not rounded.
func SimpleInterest(principal, ratePercent decimal.Decimal, start, end time.Time) decimal.Decimal {
	days := decimal.NewFromInt(DaysBetween(start, end))
	return principal.Mul(ratePercent).Mul(days).Div(yearBasisDays)
}

// MaturityInterest is the interest due at the end of a tenure of whole months.
func MaturityInterest(principal, ratePercent decimal.Decimal, tenureMonths int) decimal.Decimal {
	months := decimal.NewFromInt(int64(tenureMonths))
	return principal.Mul(ratePercent).Mul(months).Div(yearBasisMonth)
}

// CurrentValue is the remaining principal plus the interest it has accrued
// since start, as of asOf. It changes with asOf and must not be stored.
func CurrentValue(remaining, ratePercent decimal.Decimal, start, asOf time.Time) decimal.Decimal {
	return remaining.Add(SimpleInterest(remaining, ratePercent, start, asOf))
}
