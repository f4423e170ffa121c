// internal/repository/gormstore/catalog.go
package gormstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	return translate(s.conn(ctx).Create(event).Error, "event", "create event")
}

func (s *Store) FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := s.conn(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, translate(err, "event", "find event")
	}
	return &event, nil
}

func (s *Store) CreateTicketType(ctx context.Context, ticketType *models.TicketType) error {
	return translate(s.conn(ctx).Create(ticketType).Error, "ticket type", "create ticket type")
}

func (s *Store) FindTicketType(ctx context.Context, id uuid.UUID) (*models.TicketType, error) {
	var ticketType models.TicketType
	if err := s.conn(ctx).First(&ticketType, "id = ?", id).Error; err != nil {
		return nil, translate(err, "ticket type", "find ticket type")
	}
	return &ticketType, nil
}

func (s *Store) CreateFeeSchedule(ctx context.Context, schedule *models.FeeSchedule) error {
	return translate(s.conn(ctx).Create(schedule).Error, "fee schedule", "create fee schedule")
}

func (s *Store) FindFeeSchedule(ctx context.Context, id uuid.UUID) (*models.FeeSchedule, error) {
	var schedule models.FeeSchedule
	if err := s.conn(ctx).Preload("Ranges").First(&schedule, "id = ?", id).Error; err != nil {
		return nil, translate(err, "fee schedule", "find fee schedule")
	}
	return &schedule, nil
}

func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	return translate(s.conn(ctx).Create(asset).Error, "asset", "create asset")
}

func (s *Store) SaveAsset(ctx context.Context, asset *models.Asset) error {
	return translate(s.conn(ctx).Save(asset).Error, "asset", "save asset")
}

func (s *Store) FindAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.conn(ctx).First(&asset, "id = ?", id).Error; err != nil {
		return nil, translate(err, "asset", "find asset")
	}
	return &asset, nil
}

func (s *Store) FindAssetForTicketType(ctx context.Context, ticketTypeID uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.conn(ctx).First(&asset, "ticket_type_id = ?", ticketTypeID).Error; err != nil {
		return nil, translate(err, "asset", "find asset")
	}
	return &asset, nil
}
