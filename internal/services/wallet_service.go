// internal/services/wallet_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

type WalletService struct {
	store WalletStore
	log   *logrus.Entry
}

func NewWalletService(store WalletStore) *WalletService {
	return &WalletService{
		store: store,
		log:   logrus.WithField("service", "wallet"),
	}
}

// DefaultWalletForUser returns the user's default wallet, creating it with
// a fresh keypair on first use.
func (s *WalletService) DefaultWalletForUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.store.FindDefaultWalletForUser(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	secret, public, err := utils.GenerateWalletKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet keys: %w", err)
	}
	wallet = &models.Wallet{
		UserID:      &userID,
		Name:        "Default",
		SecretKey:   secret,
		PublicKey:   public,
		DefaultFlag: true,
	}
	if err := s.store.CreateWallet(ctx, wallet); err != nil {
		// Lost a race with a concurrent first use.
		if existing, findErr := s.store.FindDefaultWalletForUser(ctx, userID); findErr == nil {
			return existing, nil
		}
		return nil, err
	}

	s.log.WithField("user_id", userID).Info("Created default wallet")
	return wallet, nil
}

// CreateOrganizationWallet creates the issuing wallet that minted tickets
// start in.
func (s *WalletService) CreateOrganizationWallet(ctx context.Context, organizationID uuid.UUID, name string) (*models.Wallet, error) {
	secret, public, err := utils.GenerateWalletKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet keys: %w", err)
	}
	wallet := &models.Wallet{
		OrganizationID: &organizationID,
		Name:           name,
		SecretKey:      secret,
		PublicKey:      public,
	}
	if err := s.store.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *WalletService) FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return s.store.FindWallet(ctx, id)
}
