// Package user defines the auth user model and the normalisation rules for
// emails and usernames that every login flow shares.
package user
