// internal/repository/gormstore/tickets.go
package gormstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateTickets(ctx context.Context, tickets []models.TicketInstance) error {
	if len(tickets) == 0 {
		return nil
	}
	return translate(s.conn(ctx).CreateInBatches(&tickets, 500).Error, "ticket", "create tickets")
}

func (s *Store) SaveTickets(ctx context.Context, tickets []models.TicketInstance) error {
	db := s.conn(ctx)
	for i := range tickets {
		if err := db.Save(&tickets[i]).Error; err != nil {
			return translate(err, "ticket", "save ticket")
		}
	}
	return nil
}

func (s *Store) LockAvailableTickets(ctx context.Context, ticketTypeID uuid.UUID, holdCode *string, limit int) ([]models.TicketInstance, error) {
	query := s.conn(ctx).
		Clauses(lockSkipped).
		Where("ticket_type_id = ? AND status = ?", ticketTypeID, models.TicketInstanceStatusAvailable)
	if holdCode == nil {
		query = query.Where("hold_code IS NULL")
	} else {
		query = query.Where("hold_code = ?", *holdCode)
	}

	var tickets []models.TicketInstance
	err := query.Order("token_id").Limit(limit).Find(&tickets).Error
	return tickets, translate(err, "ticket", "lock available tickets")
}

func (s *Store) LockTicketsForOrderItem(ctx context.Context, orderItemID uuid.UUID, status models.TicketInstanceStatus) ([]models.TicketInstance, error) {
	var tickets []models.TicketInstance
	err := s.conn(ctx).
		Clauses(lockForUpdate).
		Where("order_item_id = ? AND status = ?", orderItemID, status).
		Order("token_id").
		Find(&tickets).Error
	return tickets, translate(err, "ticket", "lock order item tickets")
}

func (s *Store) LockTickets(ctx context.Context, ids []uuid.UUID) ([]models.TicketInstance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tickets []models.TicketInstance
	err := s.conn(ctx).
		Clauses(lockForUpdate).
		Where("id IN ?", ids).
		Order("id").
		Find(&tickets).Error
	return tickets, translate(err, "ticket", "lock tickets")
}

func (s *Store) FindTicket(ctx context.Context, id uuid.UUID) (*models.TicketInstance, error) {
	var ticket models.TicketInstance
	if err := s.conn(ctx).First(&ticket, "id = ?", id).Error; err != nil {
		return nil, translate(err, "ticket", "find ticket")
	}
	return &ticket, nil
}

func (s *Store) FindTicketsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.TicketInstance, error) {
	var tickets []models.TicketInstance
	err := s.conn(ctx).
		Joins("JOIN order_items ON order_items.id = ticket_instances.order_item_id").
		Where("order_items.order_id = ?", orderID).
		Order("ticket_instances.token_id").
		Find(&tickets).Error
	return tickets, translate(err, "ticket", "find order tickets")
}

func (s *Store) FindTicketsForWallet(ctx context.Context, walletID uuid.UUID) ([]models.TicketInstance, error) {
	var tickets []models.TicketInstance
	err := s.conn(ctx).Where("wallet_id = ?", walletID).Order("token_id").Find(&tickets).Error
	return tickets, translate(err, "ticket", "find wallet tickets")
}

func (s *Store) FindExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.TicketInstance, error) {
	var tickets []models.TicketInstance
	err := s.conn(ctx).
		Where("status = ? AND reserved_until < ?", models.TicketInstanceStatusReserved, now).
		Order("reserved_until").
		Limit(limit).
		Find(&tickets).Error
	return tickets, translate(err, "ticket", "find expired reservations")
}

func (s *Store) CountTicketsByType(ctx context.Context, ticketTypeID uuid.UUID) (map[models.TicketInstanceStatus]int64, error) {
	var rows []struct {
		Status models.TicketInstanceStatus
		Count  int64
	}
	err := s.conn(ctx).
		Model(&models.TicketInstance{}).
		Select("status, count(*) AS count").
		Where("ticket_type_id = ?", ticketTypeID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "ticket", "count tickets")
	}

	counts := make(map[models.TicketInstanceStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

