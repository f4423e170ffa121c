// internal/repository/memstore/catalog.go
package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	return s.run(ctx, func() error {
		s.stamp(&event.BaseModel, true)
		s.data.events[event.ID] = *event
		return nil
	})
}

func (s *Store) FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return find(s, ctx, func(t *tables) map[uuid.UUID]models.Event { return t.events }, id, "event")
}

func (s *Store) CreateTicketType(ctx context.Context, ticketType *models.TicketType) error {
	return s.run(ctx, func() error {
		s.stamp(&ticketType.BaseModel, true)
		s.data.ticketTypes[ticketType.ID] = *ticketType
		return nil
	})
}

func (s *Store) FindTicketType(ctx context.Context, id uuid.UUID) (*models.TicketType, error) {
	return find(s, ctx, func(t *tables) map[uuid.UUID]models.TicketType { return t.ticketTypes }, id, "ticket type")
}

func (s *Store) CreateFeeSchedule(ctx context.Context, schedule *models.FeeSchedule) error {
	return s.run(ctx, func() error {
		s.stamp(&schedule.BaseModel, true)
		for i := range schedule.Ranges {
			s.stamp(&schedule.Ranges[i].BaseModel, true)
			schedule.Ranges[i].FeeScheduleID = schedule.ID
		}
		stored := *schedule
		stored.Ranges = append([]models.FeeScheduleRange(nil), schedule.Ranges...)
		s.data.feeSchedules[schedule.ID] = stored
		return nil
	})
}

func (s *Store) FindFeeSchedule(ctx context.Context, id uuid.UUID) (*models.FeeSchedule, error) {
	return find(s, ctx, func(t *tables) map[uuid.UUID]models.FeeSchedule { return t.feeSchedules }, id, "fee schedule")
}

func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	return s.run(ctx, func() error {
		s.stamp(&asset.BaseModel, true)
		s.data.assets[asset.ID] = *asset
		return nil
	})
}

func (s *Store) SaveAsset(ctx context.Context, asset *models.Asset) error {
	return s.run(ctx, func() error {
		s.stamp(&asset.BaseModel, false)
		s.data.assets[asset.ID] = *asset
		return nil
	})
}

func (s *Store) FindAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	return find(s, ctx, func(t *tables) map[uuid.UUID]models.Asset { return t.assets }, id, "asset")
}

func (s *Store) FindAssetForTicketType(ctx context.Context, ticketTypeID uuid.UUID) (*models.Asset, error) {
	var out *models.Asset
	err := s.run(ctx, func() error {
		for _, a := range s.data.assets {
			if a.TicketTypeID == ticketTypeID {
				a := a
				out = &a
				return nil
			}
		}
		return apperr.NotFound("asset")
	})
	return out, err
}

// find copies one row out of the table selected by pick.
func find[T any](s *Store, ctx context.Context, pick func(*tables) map[uuid.UUID]T, id uuid.UUID, resource string) (*T, error) {
	var out *T
	err := s.run(ctx, func() error {
		row, ok := pick(&s.data)[id]
		if !ok {
			return apperr.NotFound(resource)
		}
		out = &row
		return nil
	})
	return out, err
}
