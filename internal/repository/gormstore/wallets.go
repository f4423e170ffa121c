// internal/repository/gormstore/wallets.go
package gormstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	err := s.conn(ctx).Create(wallet).Error
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeInvalidInput, "user already has a default wallet", err)
	}
	return translate(err, "wallet", "create wallet")
}

func (s *Store) FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.conn(ctx).First(&wallet, "id = ?", id).Error; err != nil {
		return nil, translate(err, "wallet", "find wallet")
	}
	return &wallet, nil
}

func (s *Store) FindDefaultWalletForUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.conn(ctx).First(&wallet, "user_id = ? AND default_flag = ?", userID, true).Error; err != nil {
		return nil, translate(err, "wallet", "find default wallet")
	}
	return &wallet, nil
}
