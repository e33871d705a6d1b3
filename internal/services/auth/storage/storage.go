package storage

import (
	"context"
	"time"

	"github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrUsernameTaken indicates an insert collided with an existing username.
var ErrUsernameTaken = errors.New(errors.CodeInvalidArgument, "username already taken")

// ErrWalletConflict indicates a wallet address already belongs to another user.
var ErrWalletConflict = errors.New(errors.CodeWalletConflict, "wallet linked to another account")

// Session is a bearer session owned by a user.
type Session struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// VerificationToken is a single-use secret proving control of an email
// address.
type VerificationToken struct {
	ID        string
	Token     string
	Email     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// OAuthState correlates an authorization request with its callback.
type OAuthState struct {
	State        string
	Provider     string
	CodeVerifier string
	CallbackURL  string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// OAuthLink maps a provider account to a user.
type OAuthLink struct {
	Provider       string
	ProviderUserID string
	UserID         string
	Email          string
	CreatedAt      time.Time
}

// Wallet is a blockchain address owned by a user. Address is stored
// lowercase.
type Wallet struct {
	Address   string
	ChainID   int64
	UserID    string
	Label     string
	IsPrimary bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore persists user records.
type UserStore interface {
	PutUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	SetUserEmail(ctx context.Context, userID, email string, updatedAt time.Time) error
	MarkEmailVerified(ctx context.Context, userID string, verifiedAt time.Time) error
	DeleteUser(ctx context.Context, userID string) error
}

// SessionStore persists sessions.
type SessionStore interface {
	PutSession(ctx context.Context, s Session) error
	// GetSessionUser resolves a session token and its owning user in one read.
	GetSessionUser(ctx context.Context, token string) (Session, user.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// VerificationTokenStore persists verification tokens.
type VerificationTokenStore interface {
	PutVerificationToken(ctx context.Context, token VerificationToken) error
	// ConsumeVerificationToken atomically deletes the token row and returns
	// its prior value.
	ConsumeVerificationToken(ctx context.Context, token string) (VerificationToken, error)
	DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error)
}

// OAuthStateStore persists in-flight OAuth authorization state.
type OAuthStateStore interface {
	PutOAuthState(ctx context.Context, state OAuthState) error
	// TakeOAuthState atomically deletes the state row and returns its prior
	// value.
	TakeOAuthState(ctx context.Context, state string) (OAuthState, error)
	DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error)
}

// OAuthLinkStore persists provider account links.
type OAuthLinkStore interface {
	GetOAuthLink(ctx context.Context, provider, providerUserID string) (OAuthLink, error)
	PutOAuthLink(ctx context.Context, link OAuthLink) error
	ListOAuthLinks(ctx context.Context, userID string) ([]OAuthLink, error)
}

// WalletStore persists wallet ownership.
type WalletStore interface {
	GetWallet(ctx context.Context, address string) (Wallet, error)
	PutWallet(ctx context.Context, wallet Wallet) error
	ListWallets(ctx context.Context, userID string) ([]Wallet, error)
	// SetPrimaryWallet clears the primary flag on every wallet of userID and
	// then sets it on address.
	SetPrimaryWallet(ctx context.Context, userID, address string, updatedAt time.Time) error
}

// Store is the full identity store.
type Store interface {
	UserStore
	SessionStore
	VerificationTokenStore
	OAuthStateStore
	OAuthLinkStore
	WalletStore
}
