package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
)

const walletColumns = `address, chain_id, user_id, label, is_primary, created_at, updated_at`

// GetWallet fetches a wallet by address. Lookups are case-insensitive.
func (s *Store) GetWallet(ctx context.Context, address string) (storage.Wallet, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE address = ?`,
		strings.ToLower(address))
	wallet, err := scanWallet(row)
	if err != nil {
		return storage.Wallet{}, notFound(err)
	}
	return wallet, nil
}

// PutWallet inserts a wallet or refreshes its label. An address owned by a
// different user returns storage.ErrWalletConflict.
func (s *Store) PutWallet(ctx context.Context, wallet storage.Wallet) error {
	if err := requireKey("wallet address", wallet.Address); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO wallets (`+walletColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
    chain_id = excluded.chain_id,
    label = excluded.label,
    updated_at = excluded.updated_at
WHERE wallets.user_id = excluded.user_id`,
		strings.ToLower(wallet.Address), wallet.ChainID, wallet.UserID, wallet.Label,
		boolToInt(wallet.IsPrimary), toMillis(wallet.CreatedAt), toMillis(wallet.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put wallet: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return storage.ErrWalletConflict
	}
	return nil
}

// ListWallets returns a user's wallets, primary first.
func (s *Store) ListWallets(ctx context.Context, userID string) ([]storage.Wallet, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+walletColumns+` FROM wallets
WHERE user_id = ? ORDER BY is_primary DESC, created_at, address`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []storage.Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

// SetPrimaryWallet clears the flag on all of the user's wallets and sets it
// on address, in one transaction.
func (s *Store) SetPrimaryWallet(ctx context.Context, userID, address string, updatedAt time.Time) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set primary wallet: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE wallets SET is_primary = 0, updated_at = ? WHERE user_id = ? AND is_primary = 1`,
		toMillis(updatedAt), userID); err != nil {
		return fmt.Errorf("clear primary wallet: %w", err)
	}
	result, err := tx.ExecContext(ctx, `UPDATE wallets SET is_primary = 1, updated_at = ? WHERE user_id = ? AND address = ?`,
		toMillis(updatedAt), userID, strings.ToLower(address))
	if err != nil {
		return fmt.Errorf("set primary wallet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set primary wallet: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

func scanWallet(row rowScanner) (storage.Wallet, error) {
	var (
		wallet    storage.Wallet
		isPrimary int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&wallet.Address, &wallet.ChainID, &wallet.UserID, &wallet.Label, &isPrimary, &createdAt, &updatedAt); err != nil {
		return storage.Wallet{}, err
	}
	wallet.IsPrimary = isPrimary != 0
	wallet.CreatedAt = fromMillis(createdAt)
	wallet.UpdatedAt = fromMillis(updatedAt)
	return wallet, nil
}
