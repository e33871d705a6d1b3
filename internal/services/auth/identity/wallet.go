package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/gatehouse/internal/services/auth/storage"
	"github.com/louisbranch/gatehouse/internal/services/auth/user"
	"github.com/louisbranch/gatehouse/internal/services/auth/wallet"
	"go.opentelemetry.io/otel/attribute"
)

// ResolveWallet returns the user owning a verified wallet address, creating
// a user without email when the address is new.
func (r *Resolver) ResolveWallet(ctx context.Context, address string, chainID int64) (user.User, error) {
	ctx, span := tracer.Start(ctx, "identity.resolve_wallet")
	defer span.End()

	normalized, err := wallet.NormalizeAddress(address)
	if err != nil {
		return user.User{}, err
	}

	existing, err := r.store.GetWallet(ctx, normalized)
	switch {
	case err == nil:
		owner, err := r.store.GetUser(ctx, existing.UserID)
		if err != nil {
			return user.User{}, fmt.Errorf("get wallet owner: %w", err)
		}
		span.SetAttributes(attribute.String("identity.outcome", "linked"))
		return owner, nil
	case !errors.Is(err, storage.ErrNotFound):
		return user.User{}, fmt.Errorf("get wallet: %w", err)
	}

	// 0x plus the first eight hex digits.
	created, err := r.createUser(ctx, user.UsernameBase(normalized[:10]), user.CreateUserInput{})
	if err != nil {
		return user.User{}, err
	}
	if _, err := r.ConnectWallet(ctx, created.ID, normalized, chainID, ""); err != nil {
		if deleteErr := r.store.DeleteUser(ctx, created.ID); deleteErr != nil {
			return user.User{}, errors.Join(err, fmt.Errorf("delete unlinked user: %w", deleteErr))
		}
		if !errors.Is(err, storage.ErrWalletConflict) {
			return user.User{}, err
		}
		// A concurrent login linked the address first; its owner wins.
		existing, lookupErr := r.store.GetWallet(ctx, normalized)
		if lookupErr != nil {
			return user.User{}, err
		}
		owner, ownerErr := r.store.GetUser(ctx, existing.UserID)
		if ownerErr != nil {
			return user.User{}, fmt.Errorf("get wallet owner: %w", ownerErr)
		}
		span.SetAttributes(attribute.String("identity.outcome", "linked"))
		return owner, nil
	}
	span.SetAttributes(attribute.String("identity.outcome", "created"))
	return created, nil
}

// ConnectWallet links a verified address to userID. The first wallet a user
// links becomes primary. An address owned by someone else is rejected with
// storage.ErrWalletConflict.
func (r *Resolver) ConnectWallet(ctx context.Context, userID, address string, chainID int64, label string) (storage.Wallet, error) {
	normalized, err := wallet.NormalizeAddress(address)
	if err != nil {
		return storage.Wallet{}, err
	}

	existing, err := r.store.GetWallet(ctx, normalized)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return storage.Wallet{}, storage.ErrWalletConflict
		}
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		return storage.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}

	owned, err := r.store.ListWallets(ctx, userID)
	if err != nil {
		return storage.Wallet{}, fmt.Errorf("list wallets: %w", err)
	}
	now := r.now()
	linked := storage.Wallet{
		Address:   normalized,
		ChainID:   chainID,
		UserID:    userID,
		Label:     strings.TrimSpace(label),
		IsPrimary: len(owned) == 0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.PutWallet(ctx, linked); err != nil {
		if errors.Is(err, storage.ErrWalletConflict) {
			return storage.Wallet{}, err
		}
		return storage.Wallet{}, fmt.Errorf("put wallet: %w", err)
	}
	return linked, nil
}

// ListWallets returns userID's wallets, primary first.
func (r *Resolver) ListWallets(ctx context.Context, userID string) ([]storage.Wallet, error) {
	wallets, err := r.store.ListWallets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

// SetPrimaryWallet makes address userID's only primary wallet.
func (r *Resolver) SetPrimaryWallet(ctx context.Context, userID, address string) error {
	normalized, err := wallet.NormalizeAddress(address)
	if err != nil {
		return err
	}
	if err := r.store.SetPrimaryWallet(ctx, userID, normalized, r.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set primary wallet: %w", err)
	}
	return nil
}
