package finance

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownStatus = errors.New("unknown_status")

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanPerforming    LoanStatus = "performing"
	LoanPreliquidated LoanStatus = "preliquidated"
	LoanNonPerforming LoanStatus = "non_performing"
	LoanFullProvision LoanStatus = "full_provision"
	LoanArchived      LoanStatus = "archived"
)

var LoanStatuses = []LoanStatus{
	LoanPerforming,
	LoanPreliquidated,
	LoanNonPerforming,
	LoanFullProvision,
	LoanArchived,
}

// repayment-screen vocabulary folded onto the portfolio classification
var loanStatusAliases = map[string]LoanStatus{
	"active":         LoanPerforming,
	"partial_repaid": LoanPerforming,
	"repaid":         LoanPreliquidated,
	"overdue":        LoanNonPerforming,
	"defaulted":      LoanFullProvision,
}

func ParseLoanStatus(s string) (LoanStatus, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	for _, st := range LoanStatuses {
		if string(st) == n {
			return st, nil
		}
	}
	if st, ok := loanStatusAliases[n]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: loan status %q", ErrUnknownStatus, s)
}

// Valid reports whether s is one of the canonical statuses. Aliases are only
// accepted by ParseLoanStatus.
func (s LoanStatus) Valid() bool {
	for _, st := range LoanStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions or repayments are accepted.
func (s LoanStatus) Terminal() bool {
	return s == LoanArchived
}

// AcceptsRepayment reports whether money can still be applied to the loan.
func (s LoanStatus) AcceptsRepayment() bool {
	switch s {
	case LoanPerforming, LoanNonPerforming:
		return true
	case LoanPreliquidated, LoanFullProvision, LoanArchived:
		return false
	}
	return false
}

// CreditStatus is the lifecycle state of a creditor's placement.
type CreditStatus string

const (
	CreditActive    CreditStatus = "active"
	CreditMatured   CreditStatus = "matured"
	CreditWithdrawn CreditStatus = "withdrawn"
)

var CreditStatuses = []CreditStatus{CreditActive, CreditMatured, CreditWithdrawn}

func ParseCreditStatus(s string) (CreditStatus, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	for _, st := range CreditStatuses {
		if string(st) == n {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: credit status %q", ErrUnknownStatus, s)
}

func (s CreditStatus) Valid() bool {
	_, err := ParseCreditStatus(string(s))
	return err == nil
}
