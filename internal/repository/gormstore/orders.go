// internal/repository/gormstore/orders.go
package gormstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(order).Error, "order", "create order")
}

func (s *Store) SaveOrder(ctx context.Context, order *models.Order) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Save(order).Error, "order", "save order")
}

func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	db := s.conn(ctx)
	if err := db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return translate(err, "order item", "delete order items")
	}
	return translate(db.Delete(&models.Order{}, "id = ?", id).Error, "order", "delete order")
}

func (s *Store) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.conn(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err, "order", "find order")
	}
	return s.withItems(ctx, &order)
}

func (s *Store) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.conn(ctx).Clauses(lockForUpdate).First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err, "order", "lock order")
	}
	return s.withItems(ctx, &order)
}

func (s *Store) FindCartForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).
		Where("user_id = ? AND order_type = ? AND status = ?", userID, models.OrderTypeCart, models.OrderStatusDraft).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, translate(err, "cart", "find cart")
	}
	return s.withItems(ctx, &order)
}

func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return translate(s.conn(ctx).Create(item).Error, "order item", "create order item")
}

func (s *Store) SaveOrderItem(ctx context.Context, item *models.OrderItem) error {
	return translate(s.conn(ctx).Save(item).Error, "order item", "save order item")
}

func (s *Store) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	return translate(s.conn(ctx).Delete(&models.OrderItem{}, "id = ?", id).Error, "order item", "delete order item")
}

func (s *Store) FindOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := s.conn(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, translate(err, "order item", "find order item")
	}
	return &item, nil
}

func (s *Store) withItems(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := s.conn(ctx).Where("order_id = ?", order.ID).Order("created_at, id").Find(&order.Items).Error; err != nil {
		return nil, translate(err, "order item", "load order items")
	}
	return order, nil
}
