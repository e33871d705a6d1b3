package oauth

import "golang.org/x/oauth2"

// NewCodeVerifier returns a fresh RFC 7636 code verifier.
func NewCodeVerifier() string {
	return oauth2.GenerateVerifier()
}
