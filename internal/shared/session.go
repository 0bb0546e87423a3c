package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// AuthCookieName carries "Bearer <token>" for browser clients.
	AuthCookieName = "Authorization"
	// AuthMarkerCookieName is readable by scripts and only signals that a session exists.
	AuthMarkerCookieName = "x-bnk-auth"
)

// SessionManager issues bearer tokens backed by redis entries.
type SessionManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// Session holds the identity bound to a bearer token.
type Session struct {
	ID        string    `json:"-"`
	AccountID int64     `json:"account_id"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionManager constructs a SessionManager. Keys are stored as "<prefix>:<token>".
func NewSessionManager(client *redis.Client, prefix string, ttl time.Duration, secure bool) *SessionManager {
	if prefix == "" {
		prefix = "session"
	}
	return &SessionManager{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Create starts a session for accountID and returns it with a fresh token.
func (sm *SessionManager) Create(ctx context.Context, accountID int64, ip, userAgent string) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}
	now := sm.now().UTC()
	sess := &Session{
		ID:        id.String(),
		AccountID: accountID,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
		return nil, fmt.Errorf("session: store: %w", err)
	}
	return sess, nil
}

// Load resolves a token. Unknown, expired and malformed tokens yield ErrUnauthenticated.
func (sm *SessionManager) Load(ctx context.Context, token string) (*Session, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrUnauthenticated
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, ErrUnauthenticated
	}
	sess.ID = token
	return &sess, nil
}

// Destroy removes the session. Destroying an unknown token is not an error.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if err := sm.client.Del(ctx, sm.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: destroy: %w", err)
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// WriteCookies sets the auth cookie and the script-visible marker cookie.
func (sm *SessionManager) WriteCookies(w http.ResponseWriter, sess *Session) {
	maxAge := int(sm.ttl.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "Bearer " + sess.ID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     AuthMarkerCookieName,
		Value:    "true",
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookies expires both auth cookies.
func (sm *SessionManager) ClearCookies(w http.ResponseWriter) {
	for _, name := range []string{AuthCookieName, AuthMarkerCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == AuthCookieName,
			Secure:   sm.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// TokenFromRequest reads the bearer token from the auth cookie first, then
// the Authorization header. The "Bearer " prefix is optional in both.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AuthCookieName); err == nil && cookie.Value != "" {
		return stripScheme(cookie.Value)
	}
	return stripScheme(r.Header.Get("Authorization"))
}

func stripScheme(value string) string {
	value = strings.TrimSpace(value)
	if _, token, ok := strings.Cut(value, " "); ok {
		return strings.TrimSpace(token)
	}
	return value
}

func (sm *SessionManager) redisKey(id string) string {
	return sm.prefix + ":" + id
}
