// internal/repository/memstore/orders.go
package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.run(ctx, func() error {
		s.stamp(&order.BaseModel, true)
		stored := *order
		stored.Items = nil
		s.data.orders[order.ID] = stored
		return nil
	})
}

func (s *Store) SaveOrder(ctx context.Context, order *models.Order) error {
	return s.run(ctx, func() error {
		if _, ok := s.data.orders[order.ID]; !ok {
			return apperr.NotFound("order")
		}
		s.stamp(&order.BaseModel, false)
		stored := *order
		stored.Items = nil
		s.data.orders[order.ID] = stored
		return nil
	})
}

func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return s.run(ctx, func() error {
		for itemID, item := range s.data.orderItems {
			if item.OrderID == id {
				delete(s.data.orderItems, itemID)
			}
		}
		delete(s.data.orders, id)
		return nil
	})
}

func (s *Store) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := s.run(ctx, func() error {
		order, ok := s.data.orders[id]
		if !ok {
			return apperr.NotFound("order")
		}
		order.Items = s.itemsFor(id)
		out = &order
		return nil
	})
	return out, err
}

func (s *Store) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, id)
}

func (s *Store) FindCartForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := s.run(ctx, func() error {
		for _, order := range s.data.orders {
			if order.UserID == userID && order.OrderType == models.OrderTypeCart && order.Status == models.OrderStatusDraft {
				order.Items = s.itemsFor(order.ID)
				out = &order
				return nil
			}
		}
		return apperr.NotFound("cart")
	})
	return out, err
}

func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return s.run(ctx, func() error {
		if _, ok := s.data.orders[item.OrderID]; !ok {
			return apperr.NotFound("order")
		}
		s.stamp(&item.BaseModel, true)
		s.data.orderItems[item.ID] = *item
		return nil
	})
}

func (s *Store) SaveOrderItem(ctx context.Context, item *models.OrderItem) error {
	return s.run(ctx, func() error {
		if _, ok := s.data.orderItems[item.ID]; !ok {
			return apperr.NotFound("order item")
		}
		s.stamp(&item.BaseModel, false)
		s.data.orderItems[item.ID] = *item
		return nil
	})
}

func (s *Store) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	return s.run(ctx, func() error {
		delete(s.data.orderItems, id)
		return nil
	})
}

func (s *Store) FindOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	return find(s, ctx, func(t *tables) map[uuid.UUID]models.OrderItem { return t.orderItems }, id, "order item")
}

func (s *Store) itemsFor(orderID uuid.UUID) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range s.data.orderItems {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items
}
