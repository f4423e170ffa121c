// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/models"
)

type OrderService struct {
	store     OrderStore
	inventory *InventoryService
	clock     clock.Clock
	log       *logrus.Entry
}

type CartItemRequest struct {
	TicketTypeID   uuid.UUID `json:"ticket_type_id" validate:"required"`
	Quantity       int64     `json:"quantity" validate:"required,min=1"`
	RedemptionCode *string   `json:"redemption_code,omitempty" validate:"omitempty,redemption_code"`
}

type AddItemsRequest struct {
	Items []CartItemRequest `json:"items" validate:"dive"`
}

func NewOrderService(store OrderStore, inventory *InventoryService, clk clock.Clock) *OrderService {
	return &OrderService{
		store:     store,
		inventory: inventory,
		clock:     clk,
		log:       logrus.WithField("service", "order"),
	}
}

// FindCart returns the user's open cart, or NotFound when there is none.
func (s *OrderService) FindCart(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	return s.store.FindCartForUser(ctx, userID)
}

func (s *OrderService) findOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	cart, err := s.store.FindCartForUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	cart = &models.Order{
		UserID:    userID,
		OrderType: models.OrderTypeCart,
		Status:    models.OrderStatusDraft,
	}
	if err := s.store.CreateOrder(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// FindOrder returns an order owned by userID.
func (s *OrderService) FindOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order")
	}
	return order, nil
}

type itemGroup struct {
	ticketTypeID   uuid.UUID
	redemptionCode *string
	quantity       int64
}

// groupItems merges requests for the same ticket type and redemption code,
// keeping first-seen order.
func groupItems(requests []CartItemRequest) []itemGroup {
	var groups []itemGroup
	for _, req := range requests {
		found := false
		for i := range groups {
			if groups[i].ticketTypeID == req.TicketTypeID && sameCode(groups[i].redemptionCode, req.RedemptionCode) {
				groups[i].quantity += req.Quantity
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, itemGroup{
				ticketTypeID:   req.TicketTypeID,
				redemptionCode: req.RedemptionCode,
				quantity:       req.Quantity,
			})
		}
	}
	return groups
}

func sameCode(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// AddItems reserves the requested tickets into the user's cart. Either
// every group is reserved or none is.
func (s *OrderService) AddItems(ctx context.Context, userID uuid.UUID, requests []CartItemRequest) (*models.Order, error) {
	if len(requests) == 0 {
		return nil, apperr.New(apperr.CodeEmptyRequest, "no items provided")
	}
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, apperr.Invalid("quantity must be positive")
		}
	}

	var cart *models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.findOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		order, err = s.store.LockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := s.ensureNoPaymentInFlight(ctx, order.ID); err != nil {
			return err
		}

		for _, group := range groupItems(requests) {
			item, err := s.upsertItem(ctx, order, group)
			if err != nil {
				return err
			}
			if _, err := s.inventory.Reserve(ctx, item.ID, group.ticketTypeID, group.quantity, group.redemptionCode); err != nil {
				return err
			}
		}

		cart, err = s.store.FindOrder(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"order_id": cart.ID,
		"items":    len(requests),
	}).Info("Added items to cart")
	return cart, nil
}

func (s *OrderService) upsertItem(ctx context.Context, order *models.Order, group itemGroup) (*models.OrderItem, error) {
	for i := range order.Items {
		item := &order.Items[i]
		if item.TicketTypeID == group.ticketTypeID && sameCode(item.RedemptionCode, group.redemptionCode) {
			item.Quantity += group.quantity
			if err := s.store.SaveOrderItem(ctx, item); err != nil {
				return nil, err
			}
			return item, nil
		}
	}

	ticketType, err := s.store.FindTicketType(ctx, group.ticketTypeID)
	if err != nil {
		return nil, err
	}
	var schedule *models.FeeSchedule
	if ticketType.FeeScheduleID != nil {
		schedule, err = s.store.FindFeeSchedule(ctx, *ticketType.FeeScheduleID)
		if err != nil {
			return nil, err
		}
	}

	item := &models.OrderItem{
		OrderID:          order.ID,
		TicketTypeID:     ticketType.ID,
		Quantity:         group.quantity,
		UnitPriceInCents: ticketType.PriceInCents,
		FeeInCents:       schedule.FeeFor(ticketType.PriceInCents),
		RedemptionCode:   group.redemptionCode,
	}
	if err := s.store.CreateOrderItem(ctx, item); err != nil {
		return nil, err
	}
	order.Items = append(order.Items, *item)
	return item, nil
}

// RemoveItem releases quantity tickets of an item, or all of them when
// quantity is nil. It returns nil when the cart ends up empty, because the
// cart is deleted.
func (s *OrderService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID, quantity *int64) (*models.Order, error) {
	var cart *models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		item, err := s.store.FindOrderItem(ctx, itemID)
		if err != nil {
			return err
		}
		order, err := s.store.LockOrder(ctx, item.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return apperr.NotFound("order item")
		}
		if !order.IsDraft() {
			return apperr.New(apperr.CodeInvalidOrderStatus, "only draft orders can be changed")
		}
		if err := s.ensureNoPaymentInFlight(ctx, order.ID); err != nil {
			return err
		}

		qty := item.Quantity
		if quantity != nil {
			qty = *quantity
		}
		if _, err := s.inventory.Release(ctx, item.ID, qty); err != nil {
			return err
		}

		cart, err = s.shrinkItem(ctx, order.ID, item, qty)
		return err
	})
	return cart, err
}

// ensureNoPaymentInFlight rejects changes to an order while a payment for
// its current total is still open. Must run with the order locked.
func (s *OrderService) ensureNoPaymentInFlight(ctx context.Context, orderID uuid.UUID) error {
	live, _, err := livePayment(ctx, s.store, orderID, s.clock.Now(), s.log)
	if err != nil {
		return err
	}
	if live != nil {
		return apperr.New(apperr.CodeInvalidOrderStatus, "order has a payment in progress")
	}
	return nil
}

// shrinkItem lowers an item's quantity, dropping the item and then the
// order when they become empty. Returns nil once the order is gone.
func (s *OrderService) shrinkItem(ctx context.Context, orderID uuid.UUID, item *models.OrderItem, by int64) (*models.Order, error) {
	item.Quantity -= by
	if item.Quantity <= 0 {
		if err := s.store.DeleteOrderItem(ctx, item.ID); err != nil {
			return nil, err
		}
	} else if err := s.store.SaveOrderItem(ctx, item); err != nil {
		return nil, err
	}

	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(order.Items) == 0 && order.IsDraft() {
		if err := s.store.DeleteOrder(ctx, order.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return order, nil
}

// SweepExpiredReservations releases up to limit lapsed reservations and
// shrinks the carts that held them. Items are handled one transaction each
// so one bad item does not hold back the rest. Holds of a draft order with
// a payment in flight are renewed instead of released.
func (s *OrderService) SweepExpiredReservations(ctx context.Context, limit int) (int64, error) {
	byItem, err := s.inventory.ExpiredReservations(ctx, limit)
	if err != nil {
		return 0, err
	}

	var total int64
	for itemID := range byItem {
		var released int64
		err := s.store.WithTx(ctx, func(ctx context.Context) error {
			item, err := s.store.FindOrderItem(ctx, itemID)
			if errors.Is(err, apperr.ErrNotFound) {
				released, err = s.inventory.ReleaseExpired(ctx, itemID)
				return err
			}
			if err != nil {
				return err
			}
			order, err := s.store.LockOrder(ctx, item.OrderID)
			if err != nil {
				return err
			}
			if order.IsDraft() {
				now := s.clock.Now()
				live, _, err := livePayment(ctx, s.store, order.ID, now, s.log)
				if err != nil {
					return err
				}
				if live != nil {
					s.log.WithFields(logrus.Fields{
						"order_id":   order.ID,
						"payment_id": live.ID,
					}).Warn("Renewing holds of an order with a payment in flight")
					_, err = s.inventory.ExtendHolds(ctx, itemID, now.Add(s.inventory.HoldWindow()))
					return err
				}
			}

			released, err = s.inventory.ReleaseExpired(ctx, itemID)
			if err != nil || released == 0 || !order.IsDraft() {
				return err
			}
			_, err = s.shrinkItem(ctx, order.ID, item, released)
			return err
		})
		if err != nil {
			s.log.WithError(err).WithField("order_item_id", itemID).Error("Failed to release expired reservations")
			continue
		}
		total += released
	}

	if total > 0 {
		s.log.WithField("released", total).Info("Released expired reservations")
	}
	return total, nil
}

// RunSweeper calls SweepExpiredReservations every interval until ctx ends.
func (s *OrderService) RunSweeper(ctx context.Context, interval time.Duration, batchSize int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.WithField("interval", interval).Info("Reservation sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Reservation sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SweepExpiredReservations(ctx, batchSize); err != nil {
				s.log.WithError(err).Error("Reservation sweep failed")
			}
		}
	}
}
