// internal/repository/memstore/store_test.go
package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	order := &models.Order{UserID: uuid.New(), OrderType: models.OrderTypeCart, Status: models.OrderStatusDraft}
	require.NoError(t, s.CreateOrder(ctx, order))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		order.Status = models.OrderStatusPaid
		require.NoError(t, s.SaveOrder(ctx, order))
		require.NoError(t, s.CreateOrderItem(ctx, &models.OrderItem{OrderID: order.ID, TicketTypeID: uuid.New(), Quantity: 2}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDraft, got.Status)
	assert.Empty(t, got.Items)
}

func TestNestedWithTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		return s.WithTx(ctx, func(ctx context.Context) error {
			return s.CreateOrder(ctx, &models.Order{UserID: userID, OrderType: models.OrderTypeCart, Status: models.OrderStatusDraft})
		})
	})
	require.NoError(t, err)

	cart, err := s.FindCartForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, cart.UserID)
}

func TestCreatePaymentRejectsSecondActivePayment(t *testing.T) {
	ctx := context.Background()
	s := New()
	orderID := uuid.New()

	first := &models.Payment{OrderID: orderID, Status: models.PaymentStatusAuthorized, AmountInCents: 100}
	require.NoError(t, s.CreatePayment(ctx, first))

	err := s.CreatePayment(ctx, &models.Payment{OrderID: orderID, Status: models.PaymentStatusAuthorized, AmountInCents: 100})
	assert.ErrorIs(t, err, apperr.ErrInvalidOrderStatus)

	first.Status = models.PaymentStatusRefunded
	require.NoError(t, s.SavePayment(ctx, first))
	assert.NoError(t, s.CreatePayment(ctx, &models.Payment{OrderID: orderID, Status: models.PaymentStatusAuthorized, AmountInCents: 100}))
}

func TestLockAvailableTicketsHonoursHoldCode(t *testing.T) {
	ctx := context.Background()
	s := New()
	typeID := uuid.New()
	code := "VIP"

	tickets := []models.TicketInstance{
		{TicketTypeID: typeID, TokenID: 1, Status: models.TicketInstanceStatusAvailable},
		{TicketTypeID: typeID, TokenID: 2, Status: models.TicketInstanceStatusAvailable, HoldCode: &code},
		{TicketTypeID: typeID, TokenID: 3, Status: models.TicketInstanceStatusAvailable},
	}
	require.NoError(t, s.CreateTickets(ctx, tickets))

	open, err := s.LockAvailableTickets(ctx, typeID, nil, 10)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	held, err := s.LockAvailableTickets(ctx, typeID, &code, 10)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, int64(2), held[0].TokenID)
}
