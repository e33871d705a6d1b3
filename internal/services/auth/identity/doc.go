// Package identity resolves verified credentials to users.
//
// Every credential goes through the same precedence: an existing link wins,
// then a verified email match links the credential to that user, and only
// then is a new user created. Email sign-in issues a verification token and
// mails it as a magic link.
package identity
