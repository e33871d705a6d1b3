package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
)

// PutOAuthState stores in-flight authorization state.
func (s *Store) PutOAuthState(ctx context.Context, state storage.OAuthState) error {
	if err := requireKey("oauth state", state.State); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO oauth_states (state, provider, code_verifier, callback_url, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		state.State, state.Provider, state.CodeVerifier, state.CallbackURL,
		toMillis(state.ExpiresAt), toMillis(state.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put oauth state: %w", err)
	}
	return nil
}

// TakeOAuthState deletes the state row and returns what it held.
func (s *Store) TakeOAuthState(ctx context.Context, state string) (storage.OAuthState, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
DELETE FROM oauth_states WHERE state = ?
RETURNING state, provider, code_verifier, callback_url, expires_at, created_at`, state)

	var (
		record    storage.OAuthState
		expiresAt int64
		createdAt int64
	)
	if err := row.Scan(&record.State, &record.Provider, &record.CodeVerifier, &record.CallbackURL, &expiresAt, &createdAt); err != nil {
		return storage.OAuthState{}, notFound(err)
	}
	record.ExpiresAt = fromMillis(expiresAt)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// DeleteExpiredOAuthStates removes abandoned authorization attempts.
func (s *Store) DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpired(ctx, "oauth_states", now)
}

// GetOAuthLink fetches the link for a provider account.
func (s *Store) GetOAuthLink(ctx context.Context, provider, providerUserID string) (storage.OAuthLink, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT provider, provider_user_id, user_id, email, created_at
FROM oauth_links WHERE provider = ? AND provider_user_id = ?`, provider, providerUserID)
	link, err := scanOAuthLink(row)
	if err != nil {
		return storage.OAuthLink{}, notFound(err)
	}
	return link, nil
}

// PutOAuthLink stores a provider account link. Relinking an existing provider
// account moves it to the new user.
func (s *Store) PutOAuthLink(ctx context.Context, link storage.OAuthLink) error {
	if err := requireKey("provider", link.Provider); err != nil {
		return err
	}
	if err := requireKey("provider user id", link.ProviderUserID); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO oauth_links (provider, provider_user_id, user_id, email, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(provider, provider_user_id) DO UPDATE SET
    user_id = excluded.user_id,
    email = excluded.email`,
		link.Provider, link.ProviderUserID, link.UserID, link.Email, toMillis(link.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put oauth link: %w", err)
	}
	return nil
}

// ListOAuthLinks returns every provider account linked to a user.
func (s *Store) ListOAuthLinks(ctx context.Context, userID string) ([]storage.OAuthLink, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT provider, provider_user_id, user_id, email, created_at
FROM oauth_links WHERE user_id = ? ORDER BY provider, provider_user_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list oauth links: %w", err)
	}
	defer rows.Close()

	var links []storage.OAuthLink
	for rows.Next() {
		link, err := scanOAuthLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan oauth link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func scanOAuthLink(row rowScanner) (storage.OAuthLink, error) {
	var (
		link      storage.OAuthLink
		createdAt int64
	)
	if err := row.Scan(&link.Provider, &link.ProviderUserID, &link.UserID, &link.Email, &createdAt); err != nil {
		return storage.OAuthLink{}, err
	}
	link.CreatedAt = fromMillis(createdAt)
	return link, nil
}
