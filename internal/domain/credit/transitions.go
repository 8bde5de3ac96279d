package credit

import "github.com/lendingdesk/backoffice/internal/finance"

// Matured and withdrawn credits are closed.
func CanTransition(from, to finance.CreditStatus) bool {
	return from == finance.CreditActive && (to == finance.CreditMatured || to == finance.CreditWithdrawn)
}
