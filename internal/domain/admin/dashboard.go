package admin

import (
	"context"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/finance"
)

const recentActivityLimit = 20

type LoanBook interface {
	Summary(ctx context.Context, viewer auth.Principal, debtorID string) (finance.LoanStats, error)
	ListLoans(ctx context.Context, viewer auth.Principal, f loandomain.ListFilter) ([]loandomain.View, error)
}

type CreditBook interface {
	Summary(ctx context.Context, viewer auth.Principal, creditorID string) (finance.CreditStats, error)
	ListCredits(ctx context.Context, viewer auth.Principal, f creditdomain.ListFilter) ([]creditdomain.View, error)
}

type ActivityLog interface {
	List(ctx context.Context, f audit.Filter) ([]audit.Log, error)
}

type StaffDashboard struct {
	Loans    finance.LoanStats   `json:"loans"`
	Credits  finance.CreditStats `json:"credits"`
	Users    UserCounts          `json:"users"`
	Activity []audit.Log         `json:"recent_activity"`
}

type DebtorDashboard struct {
	Summary finance.LoanStats `json:"summary"`
	Loans   []loandomain.View `json:"loans"`
}

type CreditorDashboard struct {
	Summary finance.CreditStats `json:"summary"`
	Credits []creditdomain.View `json:"credits"`
}

// Dashboards assembles the per-role landing screens from the domain services.
type Dashboards struct {
	admin    *Service
	loans    LoanBook
	credits  CreditBook
	activity ActivityLog
}

func NewDashboards(admin *Service, loans LoanBook, credits CreditBook, activity ActivityLog) *Dashboards {
	return &Dashboards{admin: admin, loans: loans, credits: credits, activity: activity}
}

func (d *Dashboards) Staff(ctx context.Context, viewer auth.Principal) (*StaffDashboard, error) {
	if !viewer.Internal() {
		return nil, ErrForbidden
	}
	loans, err := d.loans.Summary(ctx, viewer, "")
	if err != nil {
		return nil, err
	}
	credits, err := d.credits.Summary(ctx, viewer, "")
	if err != nil {
		return nil, err
	}
	users, err := d.admin.UserCounts(ctx, viewer)
	if err != nil {
		return nil, err
	}
	out := &StaffDashboard{Loans: loans, Credits: credits, Users: users, Activity: []audit.Log{}}
	if d.activity != nil {
		logs, err := d.activity.List(ctx, audit.Filter{Limit: recentActivityLimit})
		if err != nil {
			return nil, err
		}
		out.Activity = logs
	}
	return out, nil
}

func (d *Dashboards) Debtor(ctx context.Context, viewer auth.Principal) (*DebtorDashboard, error) {
	if viewer.Role != auth.RoleDebtor {
		return nil, ErrForbidden
	}
	summary, err := d.loans.Summary(ctx, viewer, viewer.UserID)
	if err != nil {
		return nil, err
	}
	loans, err := d.loans.ListLoans(ctx, viewer, loandomain.ListFilter{DebtorID: viewer.UserID, Limit: 100})
	if err != nil {
		return nil, err
	}
	return &DebtorDashboard{Summary: summary, Loans: loans}, nil
}

func (d *Dashboards) Creditor(ctx context.Context, viewer auth.Principal) (*CreditorDashboard, error) {
	if viewer.Role != auth.RoleCreditor {
		return nil, ErrForbidden
	}
	summary, err := d.credits.Summary(ctx, viewer, viewer.UserID)
	if err != nil {
		return nil, err
	}
	credits, err := d.credits.ListCredits(ctx, viewer, creditdomain.ListFilter{CreditorID: viewer.UserID, Limit: 100})
	if err != nil {
		return nil, err
	}
	return &CreditorDashboard{Summary: summary, Credits: credits}, nil
}
