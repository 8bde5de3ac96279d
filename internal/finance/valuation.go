package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Valuation is a read-time snapshot of a loan or credit. It is computed per
// request and never persisted.
type Valuation struct {
	AsOf             time.Time       `json:"as_of"`
	DaysElapsed      int64           `json:"days_elapsed"`
	Remaining        decimal.Decimal `json:"remaining_principal"`
	AccruedInterest  decimal.Decimal `json:"accrued_interest"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	MaturityInterest decimal.Decimal `json:"maturity_interest"`
}

// Terms are the contractual figures a valuation is derived from.
type Terms struct {
	Principal    decimal.Decimal
	Repaid       decimal.Decimal
	RatePercent  decimal.Decimal
	TenureMonths int
	StartDate    time.Time
}

// Remaining is principal less repaid, floored at zero.
func (t Terms) Remaining() decimal.Decimal {
	r := t.Principal.Sub(t.Repaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Value accrues the remaining principal from the start date to asOf.
func Value(t Terms, asOf time.Time) Valuation {
	remaining := t.Remaining()
	accrued := SimpleInterest(remaining, t.RatePercent, t.StartDate, asOf)
	return Valuation{
		AsOf:             asOf,
		DaysElapsed:      DaysBetween(t.StartDate, asOf),
		Remaining:        remaining,
		AccruedInterest:  accrued,
		CurrentValue:     remaining.Add(accrued),
		MaturityInterest: MaturityInterest(t.Principal, t.RatePercent, t.TenureMonths),
	}
}
