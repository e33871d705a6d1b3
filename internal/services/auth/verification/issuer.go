// Package verification issues and consumes single-use email verification
// tokens.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/platform/id"
	"github.com/louisbranch/gatehouse/internal/platform/secret"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 30 * time.Minute

var (
	// ErrTokenNotFound indicates an unknown or already consumed token.
	ErrTokenNotFound = apperrors.New(apperrors.CodeNotFound, "invalid or already used link")
	// ErrTokenExpired indicates a token consumed after its expiry.
	ErrTokenExpired = apperrors.New(apperrors.CodeExpired, "link expired")
)

// Issuer creates and consumes verification tokens.
type Issuer struct {
	store          storage.VerificationTokenStore
	ttl            time.Duration
	clock          func() time.Time
	idGenerator    func() (string, error)
	tokenGenerator func() (string, error)
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(i *Issuer) { i.clock = clock }
}

// WithTokenGenerator overrides how token strings are produced.
func WithTokenGenerator(fn func() (string, error)) Option {
	return func(i *Issuer) { i.tokenGenerator = fn }
}

// NewIssuer builds an Issuer. A non-positive ttl falls back to DefaultTTL.
func NewIssuer(store storage.VerificationTokenStore, ttl time.Duration, opts ...Option) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	issuer := &Issuer{
		store:          store,
		ttl:            ttl,
		clock:          time.Now,
		idGenerator:    id.NewID,
		tokenGenerator: func() (string, error) { return secret.Token(secret.TokenBytes) },
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// Issue creates a token for email owned by userID. Outstanding tokens for the
// same user stay valid.
func (i *Issuer) Issue(ctx context.Context, email, userID string) (storage.VerificationToken, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(userID) == "" {
		return storage.VerificationToken{}, apperrors.New(apperrors.CodeInvalidArgument, "email and user are required")
	}
	tokenID, err := i.idGenerator()
	if err != nil {
		return storage.VerificationToken{}, fmt.Errorf("generate token id: %w", err)
	}
	value, err := i.tokenGenerator()
	if err != nil {
		return storage.VerificationToken{}, fmt.Errorf("generate token: %w", err)
	}

	now := i.clock().UTC()
	token := storage.VerificationToken{
		ID:        tokenID,
		Token:     value,
		Email:     email,
		UserID:    userID,
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}
	if err := i.store.PutVerificationToken(ctx, token); err != nil {
		return storage.VerificationToken{}, fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}

// Consume deletes the token and returns its prior value. The row is gone
// after the first call whether or not the token had expired, so a second
// call always fails with ErrTokenNotFound.
func (i *Issuer) Consume(ctx context.Context, value string) (storage.VerificationToken, error) {
	if strings.TrimSpace(value) == "" {
		return storage.VerificationToken{}, ErrTokenNotFound
	}
	token, err := i.store.ConsumeVerificationToken(ctx, value)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.VerificationToken{}, ErrTokenNotFound
	}
	if err != nil {
		return storage.VerificationToken{}, fmt.Errorf("consume verification token: %w", err)
	}
	if token.ExpiresAt.Before(i.clock().UTC()) {
		return storage.VerificationToken{}, ErrTokenExpired
	}
	return token, nil
}

// DeleteExpired removes tokens that can no longer be consumed.
func (i *Issuer) DeleteExpired(ctx context.Context) (int64, error) {
	return i.store.DeleteExpiredVerificationTokens(ctx, i.clock().UTC())
}
