package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lendingdesk/backoffice/internal/auth"
	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/db"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidRole = errors.New("invalid_role")
	ErrSelfDemote  = errors.New("cannot_demote_self")
	ErrNotFound    = errors.New("user_not_found")
)

type UserRepository interface {
	GetUserByID(ctx context.Context, userID string) (*db.User, error)
	ListUsers(ctx context.Context, f db.UserFilter) ([]db.User, error)
	UpdateUserRole(ctx context.Context, userID, role string) error
	CountUsersByRole(ctx context.Context) ([]db.RoleCount, error)
}

type UserCounts struct {
	Total  int64            `json:"total"`
	ByRole map[string]int64 `json:"by_role"`
}

type Service struct {
	users    UserRepository
	audit    audit.Recorder
	cache    cache.Store
	cacheTTL time.Duration
}

func NewService(users UserRepository, recorder audit.Recorder, store cache.Store, cacheTTL time.Duration) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if store == nil {
		store = cache.Nop{}
	}
	return &Service{users: users, audit: recorder, cache: store, cacheTTL: cacheTTL}
}

func (s *Service) ListUsers(ctx context.Context, actor auth.Principal, f db.UserFilter) ([]db.User, error) {
	if !actor.Internal() {
		return nil, ErrForbidden
	}
	f.Role = auth.NormalizeRole(f.Role)
	if f.Role != "" && !auth.ValidRole(f.Role) {
		return nil, ErrInvalidRole
	}
	f.Search = strings.TrimSpace(f.Search)
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.users.ListUsers(ctx, f)
}

func (s *Service) UpdateUserRole(ctx context.Context, actor auth.Principal, userID, role string) (*db.User, error) {
	if actor.Role != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	role = auth.NormalizeRole(role)
	if !auth.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	userID = strings.TrimSpace(userID)
	if userID == actor.UserID && role != auth.RoleAdmin {
		return nil, ErrSelfDemote
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	if err := s.users.UpdateUserRole(ctx, userID, role); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update role: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    actor.UserID,
		Action:     audit.ActionUserRoleUpdated,
		TargetType: "user",
		TargetID:   userID,
		Payload:    map[string]any{"from": user.Role, "to": role},
	})
	_ = s.cache.Delete(ctx, cache.KeyUserCounts)

	user.Role = role
	return user, nil
}

func (s *Service) UserCounts(ctx context.Context, actor auth.Principal) (UserCounts, error) {
	if !actor.Internal() {
		return UserCounts{}, ErrForbidden
	}
	return cache.Remember(ctx, s.cache, cache.KeyUserCounts, s.cacheTTL, func(ctx context.Context) (UserCounts, error) {
		rows, err := s.users.CountUsersByRole(ctx)
		if err != nil {
			return UserCounts{}, err
		}
		out := UserCounts{ByRole: make(map[string]int64, len(auth.Roles))}
		for _, r := range auth.Roles {
			out.ByRole[r] = 0
		}
		for _, row := range rows {
			out.ByRole[row.Role] += row.Count
			out.Total += row.Count
		}
		return out, nil
	})
}
