// Package guest gives anonymous visitors a stable user without any
// credential.
package guest

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/services/auth/session"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

// Sessions validates and mints sessions.
type Sessions interface {
	Validate(ctx context.Context, token string) (user.User, error)
	Mint(ctx context.Context, userID string) (storage.Session, error)
}

// Creator creates guest users.
type Creator interface {
	CreateGuest(ctx context.Context) (user.User, error)
}

// Bootstrapper ensures every request carries a session.
//
// Two simultaneous first requests from one client can each create a guest;
// clients reload after the first guest session is set.
type Bootstrapper struct {
	sessions Sessions
	creator  Creator
	cookies  session.CookiePolicy
}

// NewBootstrapper builds a Bootstrapper.
func NewBootstrapper(sessions Sessions, creator Creator, cookies session.CookiePolicy) *Bootstrapper {
	return &Bootstrapper{sessions: sessions, creator: creator, cookies: cookies}
}

// EnsureSession returns the user behind the request's session cookie, or
// creates a guest user, mints its session and sets the cookie. created
// reports whether a new guest was made.
func (b *Bootstrapper) EnsureSession(w http.ResponseWriter, r *http.Request) (current user.User, created bool, err error) {
	ctx := r.Context()
	if token := session.TokenFromRequest(r); token != "" {
		current, err := b.sessions.Validate(ctx, token)
		if err == nil {
			return current, false, nil
		}
		if !apperrors.HasCode(err, apperrors.CodeUnauthenticated) {
			return user.User{}, false, err
		}
	}

	guest, err := b.creator.CreateGuest(ctx)
	if err != nil {
		return user.User{}, false, fmt.Errorf("create guest: %w", err)
	}
	minted, err := b.sessions.Mint(ctx, guest.ID)
	if err != nil {
		return user.User{}, false, fmt.Errorf("mint guest session: %w", err)
	}
	b.cookies.Write(w, minted.Token)
	return guest, true, nil
}
