package magiclink

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
)

func TestLinkURLEncodesParams(t *testing.T) {
	link := LinkURL("https://auth.example.com/", "tok123", "a+b@x.com", "/games?id=1")
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Scheme != "https" || parsed.Host != "auth.example.com" || parsed.Path != CallbackPath {
		t.Fatalf("unexpected link %q", link)
	}
	query := parsed.Query()
	if query.Get("token") != "tok123" || query.Get("email") != "a+b@x.com" || query.Get("callbackUrl") != "/games?id=1" {
		t.Fatalf("unexpected query %v", query)
	}
}

func TestComposeSignIn(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	composer := NewComposer(Config{BaseURL: "http://localhost:8080", AppName: "Gatehouse"})

	msg, err := composer.Compose(KindSignIn, storage.VerificationToken{
		Token:     "tok123",
		Email:     "a@x.com",
		CreatedAt: created,
		ExpiresAt: created.Add(30 * time.Minute),
	}, "")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if msg.To != "a@x.com" || msg.Subject != "Sign in to Gatehouse" {
		t.Fatalf("unexpected message header %+v", msg)
	}
	wantLink := "http://localhost:8080/api/auth/callback/email?email=a%40x.com&token=tok123"
	if !strings.Contains(msg.Text, wantLink) {
		t.Fatalf("text missing link %q:\n%s", wantLink, msg.Text)
	}
	// html/template escapes & in attributes.
	if !strings.Contains(msg.HTML, "email=a%40x.com&amp;token=tok123") {
		t.Fatalf("html missing link:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "30 minutes") {
		t.Fatalf("html missing expiry:\n%s", msg.HTML)
	}
}

func TestComposeVerify(t *testing.T) {
	composer := NewComposer(Config{BaseURL: "http://localhost:8080", AppName: "Gatehouse"})
	msg, err := composer.Compose(KindVerify, storage.VerificationToken{Token: "t", Email: "a@x.com"}, "/settings")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if msg.Subject != "Verify your email for Gatehouse" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "a@x.com") {
		t.Fatalf("html missing email:\n%s", msg.HTML)
	}
}

func TestFormatTTL(t *testing.T) {
	tests := map[time.Duration]string{
		0:                "a few minutes",
		time.Minute:      "1 minute",
		30 * time.Minute: "30 minutes",
		time.Hour:        "1 hour",
		2 * time.Hour:    "2 hours",
	}
	for ttl, want := range tests {
		if got := formatTTL(ttl); got != want {
			t.Fatalf("formatTTL(%v) = %q, want %q", ttl, got, want)
		}
	}
}
