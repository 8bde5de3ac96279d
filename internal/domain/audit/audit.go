package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// SystemActor marks entries written by scheduled jobs.
const SystemActor = ""

const (
	ActionSignup           = "auth.signup"
	ActionLogin            = "auth.login"
	ActionLoginFailed      = "auth.login_failed"
	ActionLogout           = "auth.logout"
	ActionPasswordChanged  = "auth.password_changed"
	ActionUserRoleUpdated  = "user.role_updated"
	ActionLoanCreated      = "loan.created"
	ActionLoanStatus       = "loan.status_updated"
	ActionRepaymentCreated = "loan.repayment_recorded"
	ActionCreditCreated    = "credit.created"
	ActionCreditWithdrawn  = "credit.withdrawn"
	ActionCreditMatured    = "credit.matured"
	ActionPayoutCreated    = "credit.payout_recorded"
)

type Entry struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Payload    map[string]any
}

type Log struct {
	ID         int64           `json:"id"`
	ActorID    string          `json:"actor_id,omitempty"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Filter struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Limit      int32
	Offset     int32
}

type Repository interface {
	Insert(ctx context.Context, actorID, action, targetType, targetID string, payload []byte) error
	List(ctx context.Context, f Filter) ([]Log, error)
}

// Recorder is what the other domains depend on. Recording never fails from the
// caller's point of view.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Record(ctx context.Context, e Entry) {
	payload := []byte("{}")
	if len(e.Payload) > 0 {
		if b, err := json.Marshal(e.Payload); err == nil {
			payload = b
		}
	}
	if err := s.repo.Insert(ctx, e.ActorID, e.Action, e.TargetType, e.TargetID, payload); err != nil {
		s.logger.Warn("audit log write failed", "action", e.Action, "target_type", e.TargetType, "target_id", e.TargetID, "err", err)
	}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Log, error) {
	f.ActorID = strings.TrimSpace(f.ActorID)
	f.Action = strings.TrimSpace(f.Action)
	f.TargetType = strings.TrimSpace(f.TargetType)
	f.TargetID = strings.TrimSpace(f.TargetID)
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Nop discards entries. Used where no audit sink is wired.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
