package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
)

const userColumns = `u.id, u.username, u.email, u.email_verified_at, u.avatar_url, u.is_admin,
u.is_superadmin, u.is_guest, u.theme, u.address_line, u.city, u.postal_code, u.country, u.phone,
u.created_at, u.updated_at`

func scanUser(row rowScanner, extra ...any) (user.User, error) {
	var (
		u          user.User
		verifiedAt sql.NullInt64
		isAdmin    int
		isSuper    int
		isGuest    int
		theme      string
		createdAt  int64
		updatedAt  int64
	)
	dest := []any{
		&u.ID, &u.Username, &u.Email, &verifiedAt, &u.AvatarURL, &isAdmin,
		&isSuper, &isGuest, &theme, &u.Contact.AddressLine, &u.Contact.City, &u.Contact.PostalCode,
		&u.Contact.Country, &u.Contact.Phone, &createdAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return user.User{}, err
	}
	u.EmailVerifiedAt = fromNullMillis(verifiedAt)
	u.IsAdmin = isAdmin != 0
	u.IsSuperadmin = isSuper != 0
	u.Guest = isGuest != 0
	u.Theme = user.Theme(theme)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

// PutUser inserts or replaces a user record. A username collision with a
// different user returns storage.ErrUsernameTaken.
func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if err := requireKey("user id", u.ID); err != nil {
		return err
	}
	theme := u.Theme
	if theme == "" {
		theme = user.ThemeSystem
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (
    id, username, email, email_verified_at, avatar_url, is_admin, is_superadmin, is_guest, theme,
    address_line, city, postal_code, country, phone, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    username = excluded.username,
    email = excluded.email,
    email_verified_at = excluded.email_verified_at,
    avatar_url = excluded.avatar_url,
    is_admin = excluded.is_admin,
    is_superadmin = excluded.is_superadmin,
    is_guest = excluded.is_guest,
    theme = excluded.theme,
    address_line = excluded.address_line,
    city = excluded.city,
    postal_code = excluded.postal_code,
    country = excluded.country,
    phone = excluded.phone,
    updated_at = excluded.updated_at`,
		u.ID, u.Username, u.Email, toNullMillis(u.EmailVerifiedAt), u.AvatarURL,
		boolToInt(u.IsAdmin), boolToInt(u.IsSuperadmin), boolToInt(u.Guest), string(theme),
		u.Contact.AddressLine, u.Contact.City, u.Contact.PostalCode, u.Contact.Country, u.Contact.Phone,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if isUniqueViolation(err, "users.username") {
		return storage.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, notFound(err)
	}
	return u, nil
}

// GetUserByEmail fetches the oldest user with the given normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.email = ? ORDER BY u.created_at, u.id LIMIT 1`, email)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, notFound(err)
	}
	return u, nil
}

// UsernameExists reports whether a username is already taken.
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, username).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return true, nil
}

// SetUserEmail replaces the user's email and clears its verification stamp.
// A guest that attaches an email stops being a guest.
func (s *Store) SetUserEmail(ctx context.Context, userID, email string, updatedAt time.Time) error {
	return s.updateUser(ctx, `UPDATE users SET email = ?, email_verified_at = NULL, is_guest = 0, updated_at = ? WHERE id = ?`,
		email, toMillis(updatedAt), userID)
}

// MarkEmailVerified stamps the user's current email as verified.
func (s *Store) MarkEmailVerified(ctx context.Context, userID string, verifiedAt time.Time) error {
	return s.updateUser(ctx, `UPDATE users SET email_verified_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(verifiedAt), toMillis(verifiedAt), userID)
}

// DeleteUser removes a user; dependent rows go with it.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.updateUser(ctx, `DELETE FROM users WHERE id = ?`, userID)
}

func (s *Store) updateUser(ctx context.Context, query string, args ...any) error {
	result, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
