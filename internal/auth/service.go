package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	sessions SessionStore
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service. audit may be nil.
func NewService(repo Repository, sessions SessionStore, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sessions: sessions, audit: audit, logger: logger, now: time.Now}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (accounts.Account, error) {
	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return accounts.Account{}, shared.ErrInvalidCredentials
		}
		return accounts.Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return accounts.Account{}, shared.ErrInvalidCredentials
	}
	return acc, nil
}

// Login authenticates the caller, stamps last_login and opens a session
// whose id is the bearer token.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (LoginResult, *shared.Session, error) {
	acc, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, nil, err
	}
	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, acc.ID, now); err != nil {
		return LoginResult{}, nil, fmt.Errorf("auth: touch last login: %w", err)
	}
	sess, err := s.sessions.Create(ctx, acc.ID, ip, userAgent)
	if err != nil {
		return LoginResult{}, nil, err
	}
	s.record(ctx, acc.ID, "auth.login", map[string]any{"ip": ip, "user_agent": userAgent})
	return LoginResult{Token: sess.ID, User: summarize(acc)}, sess, nil
}

// Logout revokes the session behind token.
func (s *Service) Logout(ctx context.Context, accountID int64, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return err
	}
	s.record(ctx, accountID, "auth.logout", nil)
	return nil
}

// Resolve maps a bearer token to its session and account. Unknown, expired
// or orphaned tokens yield shared.ErrUnauthenticated.
func (s *Service) Resolve(ctx context.Context, token string) (accounts.Account, *shared.Session, error) {
	if token == "" {
		return accounts.Account{}, nil, shared.ErrUnauthenticated
	}
	sess, err := s.sessions.Load(ctx, token)
	if err != nil {
		return accounts.Account{}, nil, err
	}
	acc, err := s.repo.FindByID(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return accounts.Account{}, nil, shared.ErrUnauthenticated
		}
		return accounts.Account{}, nil, err
	}
	return acc, sess, nil
}

func (s *Service) record(ctx context.Context, accountID int64, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  accountID,
		Action:   action,
		Entity:   "account",
		EntityID: strconv.FormatInt(accountID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("record auth audit", slog.String("action", action), slog.Any("error", err))
	}
}
