package auth

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// Repository defines the account lookups needed by authentication.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (accounts.Account, error)
	FindByID(ctx context.Context, id int64) (accounts.Account, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// SessionStore persists bearer sessions.
type SessionStore interface {
	Create(ctx context.Context, accountID int64, ip, userAgent string) (*shared.Session, error)
	Load(ctx context.Context, token string) (*shared.Session, error)
	Destroy(ctx context.Context, token string) error
}

// AuditRecorder receives login and logout events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

var (
	_ Repository    = (*accounts.PGRepository)(nil)
	_ SessionStore  = (*shared.SessionManager)(nil)
	_ AuditRecorder = (*shared.AuditLogger)(nil)
)
