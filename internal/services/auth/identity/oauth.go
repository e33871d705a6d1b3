package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/services/auth/oauth"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
	"go.opentelemetry.io/otel/attribute"
)

// ResolveOAuth returns the user for a provider profile, linking or creating
// one as needed.
//
// An existing provider link is authoritative even if the profile now carries
// a different email. An unverified provider email is never stored or matched.
func (r *Resolver) ResolveOAuth(ctx context.Context, provider string, info oauth.UserInfo) (user.User, error) {
	ctx, span := tracer.Start(ctx, "identity.resolve_oauth")
	span.SetAttributes(attribute.String("oauth.provider", provider))
	defer span.End()

	if strings.TrimSpace(provider) == "" || strings.TrimSpace(info.ID) == "" {
		return user.User{}, apperrors.New(apperrors.CodeInvalidArgument, "provider identity is required")
	}

	link, err := r.store.GetOAuthLink(ctx, provider, info.ID)
	switch {
	case err == nil:
		existing, err := r.store.GetUser(ctx, link.UserID)
		if err != nil {
			return user.User{}, fmt.Errorf("get linked user: %w", err)
		}
		span.SetAttributes(attribute.String("identity.outcome", "linked"))
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		return user.User{}, fmt.Errorf("get oauth link: %w", err)
	}

	email := ""
	if info.EmailVerified && strings.TrimSpace(info.Email) != "" {
		normalized, err := user.NormalizeEmail(info.Email)
		if err == nil {
			email = normalized
		}
	}

	if email != "" {
		existing, err := r.store.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			if !existing.EmailVerified() {
				if err := r.store.MarkEmailVerified(ctx, existing.ID, r.now()); err != nil {
					return user.User{}, fmt.Errorf("mark email verified: %w", err)
				}
				existing, err = r.store.GetUser(ctx, existing.ID)
				if err != nil {
					return user.User{}, fmt.Errorf("get user: %w", err)
				}
			}
			if err := r.linkOAuth(ctx, provider, info.ID, existing.ID, email); err != nil {
				return user.User{}, err
			}
			span.SetAttributes(attribute.String("identity.outcome", "email_match"))
			return existing, nil
		case !errors.Is(err, storage.ErrNotFound):
			return user.User{}, fmt.Errorf("get user by email: %w", err)
		}
	}

	seed := info.Name
	if seed == "" {
		seed = email
	}
	created, err := r.createUser(ctx, user.UsernameBase(seed), user.CreateUserInput{
		Email:         email,
		EmailVerified: email != "",
		AvatarURL:     info.AvatarURL,
	})
	if err != nil {
		return user.User{}, err
	}
	if err := r.linkOAuth(ctx, provider, info.ID, created.ID, email); err != nil {
		return user.User{}, err
	}
	span.SetAttributes(attribute.String("identity.outcome", "created"))
	return created, nil
}

func (r *Resolver) linkOAuth(ctx context.Context, provider, providerUserID, userID, email string) error {
	if err := r.store.PutOAuthLink(ctx, storage.OAuthLink{
		Provider:       provider,
		ProviderUserID: providerUserID,
		UserID:         userID,
		Email:          email,
		CreatedAt:      r.now(),
	}); err != nil {
		return fmt.Errorf("put oauth link: %w", err)
	}
	return nil
}
