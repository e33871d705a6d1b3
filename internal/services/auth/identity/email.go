package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/services/auth/magiclink"
	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

var (
	// ErrNoEmail indicates an account without an email address.
	ErrNoEmail = apperrors.New(apperrors.CodeInvalidArgument, "account has no email")
	// ErrAlreadyVerified indicates an email that needs no verification.
	ErrAlreadyVerified = apperrors.New(apperrors.CodeInvalidArgument, "email already verified")
)

// SignIn starts passwordless login for email. A user is created when none
// exists. The caller gets the same result either way; only delivery failures
// are reported.
func (r *Resolver) SignIn(ctx context.Context, email, callbackURL string) error {
	ctx, span := tracer.Start(ctx, "identity.signin_email")
	defer span.End()

	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := r.store.GetUserByEmail(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		account, err = r.createUser(ctx, user.UsernameBase(normalized), user.CreateUserInput{Email: normalized})
	}
	if err != nil {
		return fmt.Errorf("resolve email user: %w", err)
	}

	return r.sendLink(ctx, magiclink.KindSignIn, normalized, account.ID, callbackURL)
}

// ResendVerification mails a new verification link to userID's current
// email.
func (r *Resolver) ResendVerification(ctx context.Context, userID, callbackURL string) error {
	account, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if account.Email == "" {
		return ErrNoEmail
	}
	if account.EmailVerified() {
		return ErrAlreadyVerified
	}
	return r.sendLink(ctx, magiclink.KindVerify, account.Email, account.ID, callbackURL)
}

func (r *Resolver) sendLink(ctx context.Context, kind magiclink.Kind, email, userID, callbackURL string) error {
	token, err := r.issuer.Issue(ctx, email, userID)
	if err != nil {
		return err
	}
	msg, err := r.composer.Compose(kind, token, callbackURL)
	if err != nil {
		return err
	}
	if _, err := r.mailer.Send(ctx, msg); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUnknown {
			return apperrors.Wrap(apperrors.CodeProvider, "email delivery failed", err)
		}
		return err
	}
	return nil
}

// CompleteEmailLogin consumes a magic-link token and returns its user with
// the email marked verified. linkEmail is the address from the link itself
// and may be empty.
func (r *Resolver) CompleteEmailLogin(ctx context.Context, tokenValue, linkEmail string) (user.User, error) {
	token, err := r.issuer.Consume(ctx, tokenValue)
	if err != nil {
		return user.User{}, err
	}
	if strings.TrimSpace(linkEmail) != "" {
		normalized, err := user.NormalizeEmail(linkEmail)
		if err != nil || normalized != token.Email {
			return user.User{}, ErrEmailMismatch
		}
	}
	return r.confirmEmail(ctx, token)
}

// VerifyEmail consumes a verification token on behalf of the signed-in
// userID. The token must belong to userID and match its current email.
func (r *Resolver) VerifyEmail(ctx context.Context, userID, tokenValue string) (user.User, error) {
	token, err := r.issuer.Consume(ctx, tokenValue)
	if err != nil {
		return user.User{}, err
	}
	if token.UserID != userID {
		return user.User{}, ErrEmailMismatch
	}
	return r.confirmEmail(ctx, token)
}

func (r *Resolver) confirmEmail(ctx context.Context, token storage.VerificationToken) (user.User, error) {
	account, err := r.store.GetUser(ctx, token.UserID)
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	if account.Email != token.Email {
		return user.User{}, ErrEmailMismatch
	}
	if account.EmailVerified() {
		return account, nil
	}
	now := r.now()
	if err := r.store.MarkEmailVerified(ctx, account.ID, now); err != nil {
		return user.User{}, fmt.Errorf("mark email verified: %w", err)
	}
	account.EmailVerifiedAt = &now
	account.UpdatedAt = now
	return account, nil
}
