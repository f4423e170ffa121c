// internal/repository/memstore/transfers.go
package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateTransferAuthorization(ctx context.Context, auth *models.TransferAuthorization) error {
	return s.run(ctx, func() error {
		for _, a := range s.data.transfers {
			if a.TransferKey == auth.TransferKey {
				return apperr.Invalid("transfer key already issued")
			}
		}
		s.stamp(&auth.BaseModel, true)
		stored := *auth
		stored.TicketIDs = append(pq.StringArray(nil), auth.TicketIDs...)
		s.data.transfers[auth.ID] = stored
		return nil
	})
}

func (s *Store) LockTransferAuthorizationByKey(ctx context.Context, key uuid.UUID) (*models.TransferAuthorization, error) {
	var out *models.TransferAuthorization
	err := s.run(ctx, func() error {
		for _, a := range s.data.transfers {
			if a.TransferKey == key {
				out = &a
				return nil
			}
		}
		return apperr.NotFound("transfer authorization")
	})
	return out, err
}

func (s *Store) SaveTransferAuthorization(ctx context.Context, auth *models.TransferAuthorization) error {
	return s.run(ctx, func() error {
		if _, ok := s.data.transfers[auth.ID]; !ok {
			return apperr.NotFound("transfer authorization")
		}
		s.stamp(&auth.BaseModel, false)
		s.data.transfers[auth.ID] = *auth
		return nil
	})
}

func (s *Store) HasConsumedTransferForTicket(ctx context.Context, ticketID uuid.UUID) (bool, error) {
	var found bool
	err := s.run(ctx, func() error {
		id := ticketID.String()
		for _, a := range s.data.transfers {
			if !a.IsConsumed() {
				continue
			}
			for _, t := range a.TicketIDs {
				if t == id {
					found = true
					return nil
				}
			}
		}
		return nil
	})
	return found, err
}
