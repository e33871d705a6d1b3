package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

// PutSession stores a new session.
func (s *Store) PutSession(ctx context.Context, session storage.Session) error {
	if err := requireKey("session token", session.Token); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (id, token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.Token, session.UserID, toMillis(session.ExpiresAt), toMillis(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSessionUser resolves a session token together with its owning user.
func (s *Store) GetSessionUser(ctx context.Context, token string) (storage.Session, user.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+userColumns+`, s.id, s.token, s.user_id, s.expires_at, s.created_at
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.token = ?`, token)

	var (
		session   storage.Session
		expiresAt int64
		createdAt int64
	)
	u, err := scanUser(row, &session.ID, &session.Token, &session.UserID, &expiresAt, &createdAt)
	if err != nil {
		return storage.Session{}, user.User{}, notFound(err)
	}
	session.ExpiresAt = fromMillis(expiresAt)
	session.CreatedAt = fromMillis(createdAt)
	return session, u, nil
}

// DeleteSession removes a session by token.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions whose expiry is before now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpired(ctx, "sessions", now)
}

func (s *Store) deleteExpired(ctx context.Context, table string, now time.Time) (int64, error) {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired %s: %w", table, err)
	}
	return result.RowsAffected()
}
