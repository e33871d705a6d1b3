// Package oauth runs the authorization-code flow against external identity
// providers and normalises their profiles.
//
// Each login attempt stores a random state and PKCE verifier. The state is
// deleted when the callback arrives, before the code is exchanged, so a
// callback URL works at most once.
package oauth
