package oauth

import (
	"regexp"
	"testing"
)

var verifierPattern = regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

func TestNewCodeVerifier(t *testing.T) {
	verifier := NewCodeVerifier()
	if !verifierPattern.MatchString(verifier) {
		t.Fatalf("verifier %q is not RFC 7636 shaped", verifier)
	}
	if NewCodeVerifier() == verifier {
		t.Fatal("expected fresh verifier per call")
	}
}
