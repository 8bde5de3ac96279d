package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanPosition is the slice of a loan record the aggregator needs.
type LoanPosition struct {
	Status    LoanStatus
	Principal decimal.Decimal
}

type LoanStats struct {
	TotalLoans        int             `json:"total_loans"`
	ActiveLoans       int             `json:"active_loans"`
	TotalBorrowed     decimal.Decimal `json:"total_borrowed"`
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	RepaidAmount      decimal.Decimal `json:"repaid_amount"`
	OverdueAmount     decimal.Decimal `json:"overdue_amount"`
	ProvisionedAmount decimal.Decimal `json:"provisioned_amount"`
	ByStatus          []StatusBucket  `json:"by_status"`
}

type StatusBucket struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Value  decimal.Decimal `json:"value"`
}

type bucket struct {
	count int
	value decimal.Decimal
}

func (b *bucket) add(v decimal.Decimal) {
	b.count++
	b.value = b.value.Add(v)
}

// SummarizeLoans partitions positions by status and reduces each partition to
// a count and a principal sum. Archived positions count toward TotalLoans but
// contribute to no sum. A position whose status is outside the closed set is
// treated the same way.
func SummarizeLoans(positions []LoanPosition) LoanStats {
	var performing, preliquidated, nonPerforming, fullProvision, archived bucket
	for _, p := range positions {
		switch p.Status {
		case LoanPerforming:
			performing.add(p.Principal)
		case LoanPreliquidated:
			preliquidated.add(p.Principal)
		case LoanNonPerforming:
			nonPerforming.add(p.Principal)
		case LoanFullProvision:
			fullProvision.add(p.Principal)
		case LoanArchived:
			archived.count++
		}
	}

	return LoanStats{
		TotalLoans:        len(positions),
		ActiveLoans:       performing.count,
		TotalBorrowed:     performing.value.Add(preliquidated.value).Add(nonPerforming.value).Add(fullProvision.value),
		TotalOutstanding:  performing.value.Add(nonPerforming.value),
		RepaidAmount:      preliquidated.value,
		OverdueAmount:     nonPerforming.value,
		ProvisionedAmount: fullProvision.value,
		ByStatus: []StatusBucket{
			{Status: string(LoanPerforming), Count: performing.count, Value: performing.value},
			{Status: string(LoanPreliquidated), Count: preliquidated.count, Value: preliquidated.value},
			{Status: string(LoanNonPerforming), Count: nonPerforming.count, Value: nonPerforming.value},
			{Status: string(LoanFullProvision), Count: fullProvision.count, Value: fullProvision.value},
			{Status: string(LoanArchived), Count: archived.count, Value: decimal.Zero},
		},
	}
}

// CreditPosition is the slice of a credit record the aggregator needs.
type CreditPosition struct {
	Status        CreditStatus
	Principal     decimal.Decimal
	PrincipalPaid decimal.Decimal
	RatePercent   decimal.Decimal
	TenureMonths  int
	StartDate     time.Time
	EndDate       time.Time
}

func (p CreditPosition) Terms() Terms {
	return Terms{
		Principal:    p.Principal,
		Repaid:       p.PrincipalPaid,
		RatePercent:  p.RatePercent,
		TenureMonths: p.TenureMonths,
		StartDate:    p.StartDate,
	}
}

type CreditStats struct {
	TotalCredits      int             `json:"total_credits"`
	ActiveCredits     int             `json:"active_credits"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	ActiveValue       decimal.Decimal `json:"active_value"`
	MaturedValue      decimal.Decimal `json:"matured_value"`
	WithdrawnValue    decimal.Decimal `json:"withdrawn_value"`
	ProjectedInterest decimal.Decimal `json:"projected_interest"`
	AccruedInterest   decimal.Decimal `json:"accrued_interest"`
	ByStatus          []StatusBucket  `json:"by_status"`
}

// SummarizeCredits reduces credit positions by status. Status values are
// contractual principal, so TotalInvested is the sum of the buckets. Interest
// figures only cover active credits. Accrual runs on the principal still
// outstanding and stops at the credit's end date, matching Value.
func SummarizeCredits(positions []CreditPosition, asOf time.Time) CreditStats {
	var active, matured, withdrawn bucket
	projected := decimal.Zero
	accrued := decimal.Zero
	for _, p := range positions {
		switch p.Status {
		case CreditActive:
			active.add(p.Principal)
			projected = projected.Add(MaturityInterest(p.Principal, p.RatePercent, p.TenureMonths))
			accrued = accrued.Add(Value(p.Terms(), AccrualEnd(p.EndDate, asOf)).AccruedInterest)
		case CreditMatured:
			matured.add(p.Principal)
		case CreditWithdrawn:
			withdrawn.add(p.Principal)
		}
	}

	return CreditStats{
		TotalCredits:      len(positions),
		ActiveCredits:     active.count,
		TotalInvested:     active.value.Add(matured.value).Add(withdrawn.value),
		ActiveValue:       active.value,
		MaturedValue:      matured.value,
		WithdrawnValue:    withdrawn.value,
		ProjectedInterest: projected,
		AccruedInterest:   accrued,
		ByStatus: []StatusBucket{
			{Status: string(CreditActive), Count: active.count, Value: active.value},
			{Status: string(CreditMatured), Count: matured.count, Value: matured.value},
			{Status: string(CreditWithdrawn), Count: withdrawn.count, Value: withdrawn.value},
		},
	}
}

// AccrualEnd caps asOf at the contractual end date. A zero end date means the
// term is open.
func AccrualEnd(endDate, asOf time.Time) time.Time {
	if !endDate.IsZero() && endDate.Before(asOf) {
		return endDate
	}
	return asOf
}
