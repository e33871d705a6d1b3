package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
)

// PutVerificationToken stores a verification token.
func (s *Store) PutVerificationToken(ctx context.Context, token storage.VerificationToken) error {
	if err := requireKey("verification token", token.Token); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO verification_tokens (id, token, email, user_id, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		token.ID, token.Token, token.Email, token.UserID, toMillis(token.ExpiresAt), toMillis(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put verification token: %w", err)
	}
	return nil
}

// ConsumeVerificationToken deletes the matching row and returns what it held.
// Two concurrent consumers cannot both receive the row.
func (s *Store) ConsumeVerificationToken(ctx context.Context, token string) (storage.VerificationToken, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
DELETE FROM verification_tokens WHERE token = ?
RETURNING id, token, email, user_id, expires_at, created_at`, token)

	var (
		record    storage.VerificationToken
		expiresAt int64
		createdAt int64
	)
	if err := row.Scan(&record.ID, &record.Token, &record.Email, &record.UserID, &expiresAt, &createdAt); err != nil {
		return storage.VerificationToken{}, notFound(err)
	}
	record.ExpiresAt = fromMillis(expiresAt)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// DeleteExpiredVerificationTokens removes tokens whose expiry is before now.
func (s *Store) DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpired(ctx, "verification_tokens", now)
}
