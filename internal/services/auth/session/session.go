// Package session mints, validates and revokes bearer sessions and writes
// the session cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/gatehouse/internal/platform/config"
	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/platform/id"
	"github.com/louisbranch/gatehouse/internal/platform/secret"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

// DefaultTTL is the server-side session lifetime.
const DefaultTTL = 365 * 24 * time.Hour

// ErrUnauthenticated indicates a missing, unknown or revoked session.
var ErrUnauthenticated = apperrors.New(apperrors.CodeUnauthenticated, "not signed in")

// Config controls session lifetime.
type Config struct {
	TTL time.Duration `env:"GATEHOUSE_SESSION_TTL" envDefault:"8760h"`
	// EnforceExpiry rejects sessions past their expiry at validation. When
	// false, expiry only drives the cookie lifetime.
	EnforceExpiry bool `env:"GATEHOUSE_SESSION_ENFORCE_EXPIRY" envDefault:"false"`
}

// LoadConfigFromEnv reads session configuration.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

// Manager owns the session lifecycle.
type Manager struct {
	store          storage.SessionStore
	ttl            time.Duration
	enforceExpiry  bool
	clock          func() time.Time
	idGenerator    func() (string, error)
	tokenGenerator func() (string, error)
}

// NewManager builds a Manager. A non-positive TTL uses DefaultTTL.
func NewManager(store storage.SessionStore, cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:          store,
		ttl:            ttl,
		enforceExpiry:  cfg.EnforceExpiry,
		clock:          time.Now,
		idGenerator:    id.NewID,
		tokenGenerator: func() (string, error) { return secret.Token(secret.TokenBytes) },
	}
}

// SetClock overrides the time source.
func (m *Manager) SetClock(clock func() time.Time) {
	if clock != nil {
		m.clock = clock
	}
}

// Mint creates a session for userID.
func (m *Manager) Mint(ctx context.Context, userID string) (storage.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return storage.Session{}, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	sessionID, err := m.idGenerator()
	if err != nil {
		return storage.Session{}, fmt.Errorf("generate session id: %w", err)
	}
	token, err := m.tokenGenerator()
	if err != nil {
		return storage.Session{}, fmt.Errorf("generate session token: %w", err)
	}
	now := m.clock().UTC()
	session := storage.Session{
		ID:        sessionID,
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.store.PutSession(ctx, session); err != nil {
		return storage.Session{}, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

// Validate resolves token to its user.
func (m *Manager) Validate(ctx context.Context, token string) (user.User, error) {
	if strings.TrimSpace(token) == "" {
		return user.User{}, ErrUnauthenticated
	}
	session, owner, err := m.store.GetSessionUser(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, ErrUnauthenticated
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get session: %w", err)
	}
	if m.enforceExpiry && session.ExpiresAt.Before(m.clock().UTC()) {
		return user.User{}, ErrUnauthenticated
	}
	return owner, nil
}

// Revoke deletes the session for token.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrUnauthenticated
	}
	if err := m.store.DeleteSession(ctx, token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes expired sessions. It is a no-op unless expiry is
// enforced, since unenforced sessions stay valid past their expiry.
func (m *Manager) DeleteExpired(ctx context.Context) (int64, error) {
	if !m.enforceExpiry {
		return 0, nil
	}
	return m.store.DeleteExpiredSessions(ctx, m.clock().UTC())
}
