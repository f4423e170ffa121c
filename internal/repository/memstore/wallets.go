// internal/repository/memstore/wallets.go
package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return s.run(ctx, func() error {
		if wallet.DefaultFlag && wallet.UserID != nil {
			for _, w := range s.data.wallets {
				if w.DefaultFlag && w.UserID != nil && *w.UserID == *wallet.UserID {
					return apperr.New(apperr.CodeInvalidInput, "user already has a default wallet")
				}
			}
		}
		s.stamp(&wallet.BaseModel, true)
		s.data.wallets[wallet.ID] = *wallet
		return nil
	})
}

func (s *Store) FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return find(s, ctx, func(t *tables) map[uuid.UUID]models.Wallet { return t.wallets }, id, "wallet")
}

func (s *Store) FindDefaultWalletForUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var out *models.Wallet
	err := s.run(ctx, func() error {
		for _, w := range s.data.wallets {
			if w.DefaultFlag && w.UserID != nil && *w.UserID == userID {
				out = &w
				return nil
			}
		}
		return apperr.NotFound("wallet")
	})
	return out, err
}
