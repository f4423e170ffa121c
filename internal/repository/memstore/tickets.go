// internal/repository/memstore/tickets.go
package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateTickets(ctx context.Context, tickets []models.TicketInstance) error {
	return s.run(ctx, func() error {
		for i := range tickets {
			s.stamp(&tickets[i].BaseModel, true)
			s.data.tickets[tickets[i].ID] = tickets[i]
		}
		return nil
	})
}

func (s *Store) SaveTickets(ctx context.Context, tickets []models.TicketInstance) error {
	return s.run(ctx, func() error {
		for i := range tickets {
			if _, ok := s.data.tickets[tickets[i].ID]; !ok {
				return apperr.NotFound("ticket")
			}
			s.stamp(&tickets[i].BaseModel, false)
			s.data.tickets[tickets[i].ID] = tickets[i]
		}
		return nil
	})
}

func (s *Store) LockAvailableTickets(ctx context.Context, ticketTypeID uuid.UUID, holdCode *string, limit int) ([]models.TicketInstance, error) {
	var out []models.TicketInstance
	err := s.run(ctx, func() error {
		for _, t := range s.sortedTickets() {
			if len(out) >= limit {
				break
			}
			if t.TicketTypeID == ticketTypeID && t.Status == models.TicketInstanceStatusAvailable && t.IsHeldFor(holdCode) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) LockTicketsForOrderItem(ctx context.Context, orderItemID uuid.UUID, status models.TicketInstanceStatus) ([]models.TicketInstance, error) {
	var out []models.TicketInstance
	err := s.run(ctx, func() error {
		for _, t := range s.sortedTickets() {
			if t.OrderItemID != nil && *t.OrderItemID == orderItemID && t.Status == status {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) LockTickets(ctx context.Context, ids []uuid.UUID) ([]models.TicketInstance, error) {
	var out []models.TicketInstance
	err := s.run(ctx, func() error {
		sorted := append([]uuid.UUID(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
		seen := map[uuid.UUID]bool{}
		for _, id := range sorted {
			if seen[id] {
				continue
			}
			seen[id] = true
			if t, ok := s.data.tickets[id]; ok {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) FindTicket(ctx context.Context, id uuid.UUID) (*models.TicketInstance, error) {
	var out *models.TicketInstance
	err := s.run(ctx, func() error {
		t, ok := s.data.tickets[id]
		if !ok {
			return apperr.NotFound("ticket")
		}
		out = &t
		return nil
	})
	return out, err
}

func (s *Store) FindTicketsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.TicketInstance, error) {
	var out []models.TicketInstance
	err := s.run(ctx, func() error {
		for _, t := range s.sortedTickets() {
			if t.OrderItemID == nil {
				continue
			}
			if item, ok := s.data.orderItems[*t.OrderItemID]; ok && item.OrderID == orderID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) FindTicketsForWallet(ctx context.Context, walletID uuid.UUID) ([]models.TicketInstance, error) {
	var out []models.TicketInstance
	err := s.run(ctx, func() error {
		for _, t := range s.sortedTickets() {
			if t.WalletID == walletID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) FindExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.TicketInstance, error) {
	var out []models.TicketInstance
	err := s.run(ctx, func() error {
		for _, t := range s.data.tickets {
			if t.Status == models.TicketInstanceStatusReserved && t.ReservedUntil != nil && t.ReservedUntil.Before(now) {
				out = append(out, t)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ReservedUntil.Before(*out[j].ReservedUntil) })
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (s *Store) CountTicketsByType(ctx context.Context, ticketTypeID uuid.UUID) (map[models.TicketInstanceStatus]int64, error) {
	counts := map[models.TicketInstanceStatus]int64{}
	err := s.run(ctx, func() error {
		for _, t := range s.data.tickets {
			if t.TicketTypeID == ticketTypeID {
				counts[t.Status]++
			}
		}
		return nil
	})
	return counts, err
}

// sortedTickets orders by token id so selection is deterministic.
func (s *Store) sortedTickets() []models.TicketInstance {
	out := make([]models.TicketInstance, 0, len(s.data.tickets))
	for _, t := range s.data.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TokenID != out[j].TokenID {
			return out[i].TokenID < out[j].TokenID
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
