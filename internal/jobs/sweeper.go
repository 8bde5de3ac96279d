package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/finance"
)

type LoanRepository interface {
	ListMatured(ctx context.Context, before time.Time, limit int32) ([]loandomain.Entity, error)
	UpdateStatus(ctx context.Context, id string, from, to finance.LoanStatus) error
}

type CreditRepository interface {
	ListMatured(ctx context.Context, before time.Time, limit int32) ([]creditdomain.Entity, error)
	UpdateStatus(ctx context.Context, id string, from, to finance.CreditStatus) error
}

type SweepResult struct {
	LoansOverdue   int
	CreditsMatured int
	Skipped        int
}

// Sweeper moves records whose term has ended into their follow-up status:
// performing loans with a balance become non_performing and active credits
// become matured.
type Sweeper struct {
	loans   LoanRepository
	credits CreditRepository
	audit   audit.Recorder
	cache   cache.Store
	logger  *slog.Logger
	now     func() time.Time
}

func NewSweeper(loans LoanRepository, credits CreditRepository, recorder audit.Recorder, store cache.Store, logger *slog.Logger) *Sweeper {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if store == nil {
		store = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		loans:   loans,
		credits: credits,
		audit:   recorder,
		cache:   store,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Sweeper) RunOnce(ctx context.Context, batchSize int32) (SweepResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var res SweepResult
	today := finance.StartOfDay(s.now())

	if err := s.sweepLoans(ctx, today, batchSize, &res); err != nil {
		return res, err
	}
	if err := s.sweepCredits(ctx, today, batchSize, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Sweeper) sweepLoans(ctx context.Context, today time.Time, batchSize int32, res *SweepResult) error {
	for {
		items, err := s.loans.ListMatured(ctx, today, batchSize)
		if err != nil {
			return err
		}
		moved := 0
		for _, item := range items {
			err := s.loans.UpdateStatus(ctx, item.ID, finance.LoanPerforming, finance.LoanNonPerforming)
			if errors.Is(err, loandomain.ErrStaleState) {
				res.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			moved++
			res.LoansOverdue++
			s.audit.Record(ctx, audit.Entry{
				ActorID:    audit.SystemActor,
				Action:     audit.ActionLoanStatus,
				TargetType: "loan",
				TargetID:   item.ID,
				Payload: map[string]any{
					"from":     finance.LoanPerforming,
					"to":       finance.LoanNonPerforming,
					"end_date": item.EndDate.Format(finance.DateLayout),
					"reason":   "past_end_date",
				},
			})
			_ = s.cache.Delete(ctx, cache.KeyDebtorLoans(item.DebtorID))
		}
		if moved > 0 {
			_ = s.cache.Delete(ctx, cache.KeyLoanBook)
		}
		if len(items) < int(batchSize) || moved == 0 {
			return nil
		}
	}
}

func (s *Sweeper) sweepCredits(ctx context.Context, today time.Time, batchSize int32, res *SweepResult) error {
	for {
		items, err := s.credits.ListMatured(ctx, today, batchSize)
		if err != nil {
			return err
		}
		moved := 0
		for _, item := range items {
			err := s.credits.UpdateStatus(ctx, item.ID, finance.CreditActive, finance.CreditMatured)
			if errors.Is(err, creditdomain.ErrStaleState) {
				res.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			moved++
			res.CreditsMatured++
			s.audit.Record(ctx, audit.Entry{
				ActorID:    audit.SystemActor,
				Action:     audit.ActionCreditMatured,
				TargetType: "credit",
				TargetID:   item.ID,
				Payload:    map[string]any{"end_date": item.EndDate.Format(finance.DateLayout)},
			})
			_ = s.cache.Delete(ctx, cache.KeyCreditorCredits(item.CreditorID))
		}
		if moved > 0 {
			_ = s.cache.Delete(ctx, cache.KeyCreditBook)
		}
		if len(items) < int(batchSize) || moved == 0 {
			return nil
		}
	}
}
