package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lendingdesk/backoffice/internal/cache"
	"github.com/lendingdesk/backoffice/internal/db"
	"github.com/lendingdesk/backoffice/internal/domain/audit"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidSession     = errors.New("invalid_session")
)

type Repository interface {
	CreateUser(ctx context.Context, email, fullName, role, passwordHash string) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByID(ctx context.Context, userID string) (*db.User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	CreateSession(ctx context.Context, userID, refreshHash, userAgent, ipAddress string, expiresAt time.Time) (*db.Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (*db.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	UpdateSessionRefreshHash(ctx context.Context, sessionID, refreshHash string) error
}

type Service struct {
	repo           Repository
	jwt            *JWTManager
	hasher         *PasswordHasher
	audit          audit.Recorder
	cache          cache.Store
	accessTTL      time.Duration
	refreshTTL     time.Duration
	bootstrapAdmin string
	now            func() time.Time
}

type Options struct {
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	BootstrapAdminEmail string
	// Cache holds the dashboard user counts that signups invalidate.
	Cache cache.Store
}

type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	User         *db.User
}

type SignupInput struct {
	Email    string
	Password string
	FullName string
}

type ClientInfo struct {
	UserAgent string
	IPAddress string
}

func NewService(repo Repository, jwt *JWTManager, hasher *PasswordHasher, recorder audit.Recorder, opts Options) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	store := opts.Cache
	if store == nil {
		store = cache.Nop{}
	}
	return &Service{
		repo:           repo,
		jwt:            jwt,
		hasher:         hasher,
		audit:          recorder,
		cache:          store,
		accessTTL:      opts.AccessTTL,
		refreshTTL:     opts.RefreshTTL,
		bootstrapAdmin: strings.ToLower(strings.TrimSpace(opts.BootstrapAdminEmail)),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Signup(ctx context.Context, in SignupInput, client ClientInfo) (*AuthTokens, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	role := RoleDebtor
	if s.bootstrapAdmin != "" && email == s.bootstrapAdmin {
		role = RoleAdmin
	}

	user, err := s.repo.CreateUser(ctx, email, strings.TrimSpace(in.FullName), role, hash)
	if errors.Is(err, db.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: user.ID, Action: audit.ActionSignup, TargetType: "user", TargetID: user.ID, Payload: map[string]any{"role": role}})
	_ = s.cache.Delete(ctx, cache.KeyUserCounts)

	return s.issue(ctx, user, client)
}

func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*AuthTokens, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByEmail(ctx, normalized)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		s.audit.Record(ctx, audit.Entry{ActorID: user.ID, Action: audit.ActionLoginFailed, TargetType: "user", TargetID: user.ID, Payload: map[string]any{"ip": client.IPAddress}})
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.issue(ctx, user, client)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: user.ID, Action: audit.ActionLogin, TargetType: "user", TargetID: user.ID, Payload: map[string]any{"ip": client.IPAddress, "user_agent": client.UserAgent}})
	return tokens, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*AuthTokens, error) {
	claims, err := s.jwt.Parse(refreshToken)
	if err != nil {
		return nil, ErrInvalidSession
	}
	if claims.Type != TokenTypeRefresh {
		return nil, ErrInvalidSession
	}

	session, err := s.repo.GetSessionByID(ctx, claims.SessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if session.RevokedAt != nil || s.now().After(session.ExpiresAt) {
		return nil, ErrInvalidSession
	}
	if session.RefreshTokenHash != hashToken(refreshToken) {
		return nil, ErrInvalidSession
	}

	if err := s.repo.RevokeSession(ctx, session.ID); err != nil {
		return nil, err
	}

	// role is re-read so a role change takes effect on the next refresh
	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, client)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.Parse(refreshToken)
	if err != nil {
		return nil
	}
	if claims.Type != TokenTypeRefresh || claims.SessionID == "" {
		return nil
	}
	if err := s.repo.RevokeSession(ctx, claims.SessionID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: claims.UserID, Action: audit.ActionLogout, TargetType: "session", TargetID: claims.SessionID})
	return nil
}

// CurrentRole confirms the session behind an access token is still live and
// returns the user's role as stored now, so revocation and role changes apply
// before the token expires.
func (s *Service) CurrentRole(ctx context.Context, userID, sessionID string) (string, error) {
	if userID == "" || sessionID == "" {
		return "", ErrInvalidSession
	}
	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", err
	}
	if session.UserID != userID || session.RevokedAt != nil || !s.now().Before(session.ExpiresAt) {
		return "", ErrInvalidSession
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

func (s *Service) Me(ctx context.Context, userID string) (*db.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: userID, Action: audit.ActionPasswordChanged, TargetType: "user", TargetID: userID})
	return nil
}

func (s *Service) issue(ctx context.Context, user *db.User, client ClientInfo) (*AuthTokens, error) {
	expiresAt := s.now().Add(s.refreshTTL)
	session, err := s.repo.CreateSession(ctx, user.ID, hashToken(uuid.NewString()), client.UserAgent, client.IPAddress, expiresAt)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.Mint(user.ID, session.ID, user.Role, TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwt.Mint(user.ID, session.ID, user.Role, TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSessionRefreshHash(ctx, session.ID, hashToken(refreshToken)); err != nil {
		return nil, err
	}

	return &AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken, SessionID: session.ID, User: user}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
