package verification

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	authsqlite "github.com/louisbranch/gatehouse/internal/services/auth/storage/sqlite"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T) (*Issuer, *testClock) {
	t.Helper()
	store, err := authsqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	owner := user.User{ID: "user-1", Username: "alice", Email: "a@x.com", CreatedAt: clock.now, UpdatedAt: clock.now}
	if err := store.PutUser(context.Background(), owner); err != nil {
		t.Fatalf("put user: %v", err)
	}
	return NewIssuer(store, 0, WithClock(clock.Now)), clock
}

func TestIssueSetsThirtyMinuteExpiry(t *testing.T) {
	issuer, clock := newTestIssuer(t)

	token, err := issuer.Issue(context.Background(), "a@x.com", "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token.Token == "" || token.ID == "" {
		t.Fatalf("expected populated token, got %+v", token)
	}
	if want := clock.now.Add(30 * time.Minute); !token.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, token.ExpiresAt)
	}
}

func TestIssueRequiresEmailAndUser(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	if _, err := issuer.Issue(context.Background(), "", "user-1"); !apperrors.HasCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	token, err := issuer.Issue(ctx, "a@x.com", "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := issuer.Consume(ctx, token.Token)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.Email != "a@x.com" || got.UserID != "user-1" {
		t.Fatalf("unexpected token %+v", got)
	}
	if _, err := issuer.Consume(ctx, token.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected not found on reuse, got %v", err)
	}
}

func TestConsumeExpiredStillDeletes(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	ctx := context.Background()

	token, err := issuer.Issue(ctx, "a@x.com", "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.now = clock.now.Add(31 * time.Minute)

	if _, err := issuer.Consume(ctx, token.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if _, err := issuer.Consume(ctx, token.Token); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected expired token to be gone after first attempt, got %v", err)
	}
}

func TestConsumeAtExactExpiryIsValid(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	ctx := context.Background()

	token, _ := issuer.Issue(ctx, "a@x.com", "user-1")
	clock.now = token.ExpiresAt
	if _, err := issuer.Consume(ctx, token.Token); err != nil {
		t.Fatalf("expected token valid at expiry instant, got %v", err)
	}
}

func TestMultipleTokensCoexist(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	first, _ := issuer.Issue(ctx, "a@x.com", "user-1")
	second, _ := issuer.Issue(ctx, "a@x.com", "user-1")
	if first.Token == second.Token {
		t.Fatal("expected distinct tokens")
	}
	for _, value := range []string{second.Token, first.Token} {
		if _, err := issuer.Consume(ctx, value); err != nil {
			t.Fatalf("consume %q: %v", value, err)
		}
	}
}

func TestConsumeBlankToken(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	if _, err := issuer.Consume(context.Background(), "  "); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	ctx := context.Background()

	_, _ = issuer.Issue(ctx, "a@x.com", "user-1")
	clock.now = clock.now.Add(time.Hour)
	n, err := issuer.DeleteExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one expired token removed, got %d %v", n, err)
	}
}
