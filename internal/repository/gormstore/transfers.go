// internal/repository/gormstore/transfers.go
package gormstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateTransferAuthorization(ctx context.Context, auth *models.TransferAuthorization) error {
	err := s.conn(ctx).Create(auth).Error
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeInvalidInput, "transfer key already issued", err)
	}
	return translate(err, "transfer authorization", "create transfer authorization")
}

func (s *Store) LockTransferAuthorizationByKey(ctx context.Context, key uuid.UUID) (*models.TransferAuthorization, error) {
	var auth models.TransferAuthorization
	if err := s.conn(ctx).Clauses(lockForUpdate).First(&auth, "transfer_key = ?", key).Error; err != nil {
		return nil, translate(err, "transfer authorization", "lock transfer authorization")
	}
	return &auth, nil
}

func (s *Store) SaveTransferAuthorization(ctx context.Context, auth *models.TransferAuthorization) error {
	return translate(s.conn(ctx).Save(auth).Error, "transfer authorization", "save transfer authorization")
}

func (s *Store) HasConsumedTransferForTicket(ctx context.Context, ticketID uuid.UUID) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.TransferAuthorization{}).
		Where("? = ANY(ticket_ids) AND consumed_at IS NOT NULL", ticketID.String()).
		Count(&count).Error
	if err != nil {
		return false, apperr.Persistence("check ticket transfers", err)
	}
	return count > 0, nil
}
