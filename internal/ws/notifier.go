package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lendingdesk/backoffice/internal/domain/audit"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
)

const batchSize = 100

// Cursor holds the last published id of each tailed table.
type Cursor struct {
	Repayment int64
	Payout    int64
	Activity  int64
}

type RealtimeRepository interface {
	LatestCursor(ctx context.Context) (Cursor, error)
	ListRepaymentsSince(ctx context.Context, lastID int64, limit int32) ([]loandomain.Repayment, error)
	ListPayoutsSince(ctx context.Context, lastID int64, limit int32) ([]creditdomain.Payout, error)
	ListActivitySince(ctx context.Context, lastID int64, limit int32) ([]audit.Log, error)
}

type Notifier struct {
	repo         RealtimeRepository
	hub          *Hub
	logger       *slog.Logger
	pollInterval time.Duration
	cursor       Cursor
	primed       bool
}

func NewNotifier(repo RealtimeRepository, hub *Hub, logger *slog.Logger, pollInterval time.Duration) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{repo: repo, hub: hub, logger: logger, pollInterval: pollInterval}
}

// Run polls until ctx is cancelled. Poll failures are logged and retried on
// the next tick.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.Tick(ctx); err != nil {
				n.logger.Warn("live feed poll failed", "err", err)
			}
		}
	}
}

// Tick publishes everything recorded since the previous tick. The first call
// only moves the cursor to the current head so history is not replayed.
func (n *Notifier) Tick(ctx context.Context) error {
	if !n.primed {
		c, err := n.repo.LatestCursor(ctx)
		if err != nil {
			return err
		}
		n.cursor = c
		n.primed = true
		return nil
	}

	repayments, err := n.repo.ListRepaymentsSince(ctx, n.cursor.Repayment, batchSize)
	if err != nil {
		return err
	}
	for _, r := range repayments {
		n.cursor.Repayment = max(n.cursor.Repayment, r.ID)
		n.publish(LoanTopic(r.LoanID), "repayment_recorded", map[string]any{
			"id":        r.ID,
			"loan_id":   r.LoanID,
			"debtor_id": r.DebtorID,
			"amount":    r.Amount.String(),
			"paid_at":   r.PaidAt.UTC().Format(time.RFC3339),
		})
	}

	payouts, err := n.repo.ListPayoutsSince(ctx, n.cursor.Payout, batchSize)
	if err != nil {
		return err
	}
	for _, p := range payouts {
		n.cursor.Payout = max(n.cursor.Payout, p.ID)
		n.publish(CreditTopic(p.CreditID), "payout_recorded", map[string]any{
			"id":          p.ID,
			"credit_id":   p.CreditID,
			"creditor_id": p.CreditorID,
			"kind":        p.Kind,
			"amount":      p.Amount.String(),
			"paid_at":     p.PaidAt.UTC().Format(time.RFC3339),
		})
	}

	activity, err := n.repo.ListActivitySince(ctx, n.cursor.Activity, batchSize)
	if err != nil {
		return err
	}
	for _, a := range activity {
		n.cursor.Activity = max(n.cursor.Activity, a.ID)
		n.publish(ChannelStaffActivity, "activity", a)
	}
	return nil
}

func (n *Notifier) publish(topic, event string, data any) {
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		n.logger.Warn("live feed encode failed", "event", event, "err", err)
		return
	}
	n.hub.Publish(topic, payload)
}
