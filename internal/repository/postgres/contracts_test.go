package postgres

import (
	"github.com/lendingdesk/backoffice/internal/domain/audit"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/jobs"
	"github.com/lendingdesk/backoffice/internal/ws"
)

var (
	_ loandomain.Repository   = (*LoanRepository)(nil)
	_ creditdomain.Repository = (*CreditRepository)(nil)
	_ audit.Repository        = (*AuditRepository)(nil)
	_ ws.RealtimeRepository   = (*WSRepository)(nil)
	_ jobs.LoanRepository     = (*LoanRepository)(nil)
	_ jobs.CreditRepository   = (*CreditRepository)(nil)
)
