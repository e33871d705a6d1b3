package requestctx

import (
	"context"
	"testing"
)

func TestUserIDFromContextRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-42")
	if got := UserIDFromContext(ctx); got != "user-42" {
		t.Fatalf("UserIDFromContext = %q, want %q", got, "user-42")
	}
}

func TestValuesAreIndependent(t *testing.T) {
	ctx := WithRequestID(WithUserID(context.Background(), "user-1"), "req-1")
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Fatalf("user id = %q", got)
	}
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("request id = %q", got)
	}
}

func TestNilContext(t *testing.T) {
	if got := UserIDFromContext(nil); got != "" {
		t.Fatalf("expected empty user id, got %q", got)
	}
	ctx := WithRequestID(nil, "req-9")
	if got := RequestIDFromContext(ctx); got != "req-9" {
		t.Fatalf("RequestIDFromContext = %q, want %q", got, "req-9")
	}
}
