// internal/services/inventory_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/metrics"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

const defaultHoldWindow = 15 * time.Minute

// InventoryService owns ticket instance status. Every status change goes
// through one of its methods.
type InventoryService struct {
	store      TicketStore
	clock      clock.Clock
	holdWindow time.Duration
	log        *logrus.Entry
}

type InventoryOption func(*InventoryService)

// WithHoldWindow overrides how long a reservation lasts.
func WithHoldWindow(d time.Duration) InventoryOption {
	return func(s *InventoryService) {
		if d > 0 {
			s.holdWindow = d
		}
	}
}

func NewInventoryService(store TicketStore, clk clock.Clock, opts ...InventoryOption) *InventoryService {
	svc := &InventoryService{
		store:      store,
		clock:      clk,
		holdWindow: defaultHoldWindow,
		log:        logrus.WithField("service", "inventory"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type MintRequest struct {
	AssetID      uuid.UUID
	TicketTypeID uuid.UUID
	WalletID     uuid.UUID
	Quantity     int64
	HoldCode     *string
}

// Mint creates the fixed capacity of a ticket type. Token ids continue
// after any instances already minted for the type.
func (s *InventoryService) Mint(ctx context.Context, req MintRequest) ([]models.TicketInstance, error) {
	if req.Quantity <= 0 {
		return nil, apperr.Invalid("quantity must be positive")
	}

	var minted []models.TicketInstance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		counts, err := s.store.CountTicketsByType(ctx, req.TicketTypeID)
		if err != nil {
			return err
		}
		var existing int64
		for _, n := range counts {
			existing += n
		}

		tickets := make([]models.TicketInstance, 0, req.Quantity)
		for i := int64(0); i < req.Quantity; i++ {
			key, err := utils.GenerateRedeemKey()
			if err != nil {
				return fmt.Errorf("failed to generate redeem key: %w", err)
			}
			tickets = append(tickets, models.TicketInstance{
				AssetID:      req.AssetID,
				TicketTypeID: req.TicketTypeID,
				TokenID:      existing + i,
				WalletID:     req.WalletID,
				HoldCode:     req.HoldCode,
				RedeemKey:    &key,
				Status:       models.TicketInstanceStatusAvailable,
			})
		}
		if err := s.store.CreateTickets(ctx, tickets); err != nil {
			return err
		}
		minted = tickets
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"ticket_type_id": req.TicketTypeID,
		"quantity":       req.Quantity,
	}).Info("Minted ticket instances")
	return minted, nil
}

// Reserve holds quantity Available instances of a ticket type for an order
// item. It never reserves fewer than requested.
func (s *InventoryService) Reserve(ctx context.Context, orderItemID, ticketTypeID uuid.UUID, quantity int64, holdCode *string) ([]models.TicketInstance, error) {
	if quantity <= 0 {
		return nil, apperr.Invalid("quantity must be positive")
	}

	var reserved []models.TicketInstance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		tickets, err := s.store.LockAvailableTickets(ctx, ticketTypeID, holdCode, int(quantity))
		if err != nil {
			return err
		}
		if int64(len(tickets)) < quantity {
			metrics.InsufficientInventoryTotal.Inc()
			return apperr.New(apperr.CodeInsufficientInventory,
				fmt.Sprintf("requested %d tickets but only %d are available", quantity, len(tickets)))
		}

		until := s.clock.Now().Add(s.holdWindow)
		for i := range tickets {
			tickets[i].Status = models.TicketInstanceStatusReserved
			tickets[i].OrderItemID = &orderItemID
			tickets[i].ReservedUntil = &until
		}
		if err := s.store.SaveTickets(ctx, tickets); err != nil {
			return err
		}
		reserved = tickets
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TicketsReservedTotal.Add(float64(len(reserved)))
	return reserved, nil
}

// Release returns quantity of the item's reserved instances to Available.
func (s *InventoryService) Release(ctx context.Context, orderItemID uuid.UUID, quantity int64) ([]models.TicketInstance, error) {
	if quantity <= 0 {
		return nil, apperr.Invalid("quantity must be positive")
	}

	var released []models.TicketInstance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		tickets, err := s.store.LockTicketsForOrderItem(ctx, orderItemID, models.TicketInstanceStatusReserved)
		if err != nil {
			return err
		}
		if quantity > int64(len(tickets)) {
			return apperr.New(apperr.CodeReleaseExceedsReserved,
				fmt.Sprintf("cannot release %d tickets, only %d are reserved", quantity, len(tickets)))
		}

		released = tickets[:quantity]
		return s.releaseLocked(ctx, released)
	})
	if err != nil {
		return nil, err
	}

	metrics.TicketsReleasedTotal.WithLabelValues("requested").Add(float64(len(released)))
	return released, nil
}

// ExpiredReservations counts lapsed reservations per order item.
func (s *InventoryService) ExpiredReservations(ctx context.Context, limit int) (map[uuid.UUID]int64, error) {
	tickets, err := s.store.FindExpiredReservations(ctx, s.clock.Now(), limit)
	if err != nil {
		return nil, err
	}

	byItem := make(map[uuid.UUID]int64)
	for _, t := range tickets {
		if t.OrderItemID != nil {
			byItem[*t.OrderItemID]++
		}
	}
	return byItem, nil
}

// ReleaseExpired releases the item's reservations whose hold has lapsed
// and reports how many were released.
func (s *InventoryService) ReleaseExpired(ctx context.Context, orderItemID uuid.UUID) (int64, error) {
	var count int64
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		tickets, err := s.store.LockTicketsForOrderItem(ctx, orderItemID, models.TicketInstanceStatusReserved)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		var lapsed []models.TicketInstance
		for _, t := range tickets {
			if t.ReservedUntil != nil && t.ReservedUntil.Before(now) {
				lapsed = append(lapsed, t)
			}
		}
		if len(lapsed) == 0 {
			return nil
		}
		count = int64(len(lapsed))
		return s.releaseLocked(ctx, lapsed)
	})
	if err != nil {
		return 0, err
	}

	metrics.TicketsReleasedTotal.WithLabelValues("expired").Add(float64(count))
	return count, nil
}

func (s *InventoryService) releaseLocked(ctx context.Context, tickets []models.TicketInstance) error {
	for i := range tickets {
		tickets[i].Status = models.TicketInstanceStatusAvailable
		tickets[i].OrderItemID = nil
		tickets[i].ReservedUntil = nil
	}
	return s.store.SaveTickets(ctx, tickets)
}

// ReservationsLive reports whether the item still holds item.Quantity
// unexpired reservations.
func (s *InventoryService) ReservationsLive(ctx context.Context, item *models.OrderItem) (bool, error) {
	tickets, err := s.store.LockTicketsForOrderItem(ctx, item.ID, models.TicketInstanceStatusReserved)
	if err != nil {
		return false, err
	}
	if int64(len(tickets)) < item.Quantity {
		return false, nil
	}
	now := s.clock.Now()
	for _, t := range tickets {
		if t.ReservedUntil == nil || !t.ReservedUntil.After(now) {
			return false, nil
		}
	}
	return true, nil
}

// HoldWindow is how long a fresh reservation lasts.
func (s *InventoryService) HoldWindow() time.Duration {
	return s.holdWindow
}

// ExtendHolds pushes the item's Reserved instances out to until. Holds that
// already run past until are left alone. It returns how many holds moved.
func (s *InventoryService) ExtendHolds(ctx context.Context, orderItemID uuid.UUID, until time.Time) (int64, error) {
	var extended []models.TicketInstance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		tickets, err := s.store.LockTicketsForOrderItem(ctx, orderItemID, models.TicketInstanceStatusReserved)
		if err != nil {
			return err
		}
		for _, t := range tickets {
			if t.ReservedUntil != nil && !t.ReservedUntil.Before(until) {
				continue
			}
			held := until
			t.ReservedUntil = &held
			extended = append(extended, t)
		}
		if len(extended) == 0 {
			return nil
		}
		return s.store.SaveTickets(ctx, extended)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(extended)), nil
}

// CommitPurchase moves the item's reservations to Purchased. Instances
// already Purchased are left alone, so calling it twice is harmless. If
// reservations were swept in the meantime the shortfall is taken from
// Available stock, and fails when none is left.
func (s *InventoryService) CommitPurchase(ctx context.Context, item *models.OrderItem) error {
	itemID := item.ID
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		reserved, err := s.store.LockTicketsForOrderItem(ctx, itemID, models.TicketInstanceStatusReserved)
		if err != nil {
			return err
		}
		purchased, err := s.store.LockTicketsForOrderItem(ctx, itemID, models.TicketInstanceStatusPurchased)
		if err != nil {
			return err
		}

		missing := item.Quantity - int64(len(reserved)) - int64(len(purchased))
		if missing > 0 {
			extra, err := s.store.LockAvailableTickets(ctx, item.TicketTypeID, item.RedemptionCode, int(missing))
			if err != nil {
				return err
			}
			if int64(len(extra)) < missing {
				metrics.InsufficientInventoryTotal.Inc()
				return apperr.New(apperr.CodeInsufficientInventory,
					fmt.Sprintf("order item %s lost %d reservations and stock ran out", itemID, missing))
			}
			s.log.WithFields(logrus.Fields{
				"order_item_id": itemID,
				"missing":       missing,
			}).Warn("Replacing lapsed reservations at purchase")
			reserved = append(reserved, extra...)
		}
		if len(reserved) == 0 {
			return nil
		}

		for i := range reserved {
			reserved[i].Status = models.TicketInstanceStatusPurchased
			reserved[i].OrderItemID = &itemID
			reserved[i].ReservedUntil = nil
		}
		return s.store.SaveTickets(ctx, reserved)
	})
}

// ReleasePurchased returns a Purchased ticket to Available, dropping its
// order linkage and any outstanding transfer. The ticket stays in its
// current wallet.
func (s *InventoryService) ReleasePurchased(ctx context.Context, ticketID uuid.UUID) (*models.TicketInstance, error) {
	var out *models.TicketInstance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		tickets, err := s.store.LockTickets(ctx, []uuid.UUID{ticketID})
		if err != nil {
			return err
		}
		if len(tickets) == 0 {
			return apperr.NotFound("ticket")
		}
		ticket := tickets[0]
		if ticket.Status != models.TicketInstanceStatusPurchased {
			return apperr.Invalid(fmt.Sprintf("ticket is %s, only purchased tickets can be released", ticket.Status))
		}

		ticket.Status = models.TicketInstanceStatusAvailable
		ticket.OrderItemID = nil
		ticket.ReservedUntil = nil
		ticket.TransferKey = nil
		ticket.TransferExpiryDate = nil
		if err := s.store.SaveTickets(ctx, []models.TicketInstance{ticket}); err != nil {
			return err
		}
		out = &ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TicketsReleasedTotal.WithLabelValues("purchased").Inc()
	return out, nil
}

type RedeemResult string

const (
	RedeemTicketInvalid   RedeemResult = "TicketInvalid"
	RedeemAlreadyRedeemed RedeemResult = "AlreadyRedeemed"
	RedeemSuccess         RedeemResult = "Success"
)

// Redeem marks a purchased ticket as used when key matches its redeem key.
func (s *InventoryService) Redeem(ctx context.Context, ticketID uuid.UUID, key string) (RedeemResult, error) {
	var result RedeemResult
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		tickets, err := s.store.LockTickets(ctx, []uuid.UUID{ticketID})
		if err != nil {
			return err
		}
		if len(tickets) == 0 {
			return apperr.NotFound("ticket")
		}
		ticket := tickets[0]

		switch {
		case ticket.Status == models.TicketInstanceStatusRedeemed:
			result = RedeemAlreadyRedeemed
			return nil
		case ticket.Status != models.TicketInstanceStatusPurchased,
			ticket.RedeemKey == nil,
			*ticket.RedeemKey != key:
			result = RedeemTicketInvalid
			return nil
		}

		ticket.Status = models.TicketInstanceStatusRedeemed
		ticket.TransferKey = nil
		ticket.TransferExpiryDate = nil
		if err := s.store.SaveTickets(ctx, []models.TicketInstance{ticket}); err != nil {
			return err
		}
		result = RedeemSuccess
		return nil
	})
	return result, err
}

// Availability counts a ticket type's instances per status.
func (s *InventoryService) Availability(ctx context.Context, ticketTypeID uuid.UUID) (map[models.TicketInstanceStatus]int64, error) {
	return s.store.CountTicketsByType(ctx, ticketTypeID)
}
