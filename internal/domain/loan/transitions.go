package loan

import "github.com/lendingdesk/backoffice/internal/finance"

var allowedTransitions = map[finance.LoanStatus][]finance.LoanStatus{
	finance.LoanPerforming:    {finance.LoanPreliquidated, finance.LoanNonPerforming, finance.LoanFullProvision, finance.LoanArchived},
	finance.LoanNonPerforming: {finance.LoanPerforming, finance.LoanPreliquidated, finance.LoanFullProvision, finance.LoanArchived},
	finance.LoanFullProvision: {finance.LoanNonPerforming, finance.LoanArchived},
	finance.LoanPreliquidated: {finance.LoanArchived},
}

func CanTransition(from, to finance.LoanStatus) bool {
	if from.Terminal() {
		return false
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
