package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/platform/id"
	"github.com/louisbranch/gatehouse/internal/platform/otel"
	"github.com/louisbranch/gatehouse/internal/services/auth/magiclink"
	"github.com/louisbranch/gatehouse/internal/services/auth/mail"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
	"github.com/louisbranch/gatehouse/internal/services/auth/verification"
)

// DefaultUsernameProbes is how many base, base_1, ... candidates are tried
// before falling back to a random suffix.
const DefaultUsernameProbes = 10

var tracer = otel.Tracer("identity")

// ErrEmailMismatch indicates a verification token issued for a different
// address than the account currently holds.
var ErrEmailMismatch = apperrors.New(apperrors.CodeEmailMismatch, "email does not match account")

// Store is the persistence the resolver needs.
type Store interface {
	storage.UserStore
	storage.OAuthLinkStore
	storage.WalletStore
}

// Resolver finds or creates users for verified credentials.
type Resolver struct {
	store       Store
	issuer      *verification.Issuer
	composer    *magiclink.Composer
	mailer      mail.Mailer
	clock       func() time.Time
	idGenerator func() (string, error)
	suffix      func() (string, error)
	probes      int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) { r.clock = clock }
}

// WithUsernameSuffix overrides the random username suffix source.
func WithUsernameSuffix(suffix func() (string, error)) Option {
	return func(r *Resolver) { r.suffix = suffix }
}

// WithUsernameProbes sets how many sequential username candidates are tried.
func WithUsernameProbes(n int) Option {
	return func(r *Resolver) { r.probes = n }
}

// NewResolver builds a Resolver.
func NewResolver(store Store, issuer *verification.Issuer, composer *magiclink.Composer, mailer mail.Mailer, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		issuer:      issuer,
		composer:    composer,
		mailer:      mailer,
		clock:       time.Now,
		idGenerator: id.NewID,
		probes:      DefaultUsernameProbes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) now() time.Time {
	return r.clock().UTC()
}

// createUser persists a new user whose username is derived from base. Each
// sequential candidate is checked before insert, and an insert that still
// loses a race moves on to the next candidate.
func (r *Resolver) createUser(ctx context.Context, base string, input user.CreateUserInput) (user.User, error) {
	for attempt := 0; attempt < r.probes; attempt++ {
		candidate := user.UsernameCandidate(base, attempt)
		exists, err := r.store.UsernameExists(ctx, candidate)
		if err != nil {
			return user.User{}, fmt.Errorf("check username: %w", err)
		}
		if exists {
			continue
		}
		created, err := r.insertUser(ctx, candidate, input)
		if errors.Is(err, storage.ErrUsernameTaken) {
			continue
		}
		return created, err
	}

	var lastErr error
	for range 3 {
		candidate, err := user.RandomUsername(base, r.suffix)
		if err != nil {
			return user.User{}, err
		}
		created, err := r.insertUser(ctx, candidate, input)
		if errors.Is(err, storage.ErrUsernameTaken) {
			lastErr = err
			continue
		}
		return created, err
	}
	return user.User{}, fmt.Errorf("allocate username for %q: %w", base, lastErr)
}

func (r *Resolver) insertUser(ctx context.Context, username string, input user.CreateUserInput) (user.User, error) {
	input.Username = username
	created, err := user.CreateUser(input, r.clock, r.idGenerator)
	if err != nil {
		return user.User{}, err
	}
	if err := r.store.PutUser(ctx, created); err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			return user.User{}, err
		}
		return user.User{}, fmt.Errorf("put user: %w", err)
	}
	return created, nil
}

// CreateGuest creates a user with a random guest username and no email.
func (r *Resolver) CreateGuest(ctx context.Context) (user.User, error) {
	var lastErr error
	for range 3 {
		username, err := user.GuestUsername(r.suffix)
		if err != nil {
			return user.User{}, err
		}
		created, err := r.insertUser(ctx, username, user.CreateUserInput{Guest: true})
		if errors.Is(err, storage.ErrUsernameTaken) {
			lastErr = err
			continue
		}
		return created, err
	}
	return user.User{}, fmt.Errorf("allocate guest username: %w", lastErr)
}

// DeleteAccount removes a user. Sessions, tokens, provider links and
// wallets go with it.
func (r *Resolver) DeleteAccount(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	if err := r.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
