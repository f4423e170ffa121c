// internal/services/order_service_test.go
package services_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/services"
)

func TestAddItemsGroupsAndSnapshotsFees(t *testing.T) {
	f := newFixture(t)
	schedule := &models.FeeSchedule{
		Name: "Standard",
		Ranges: []models.FeeScheduleRange{
			{MinPriceInCents: 0, FeeInCents: 100},
			{MinPriceInCents: 5000, FeeInCents: 250},
		},
	}
	tt := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 10, schedule: schedule})
	userID := uuid.New()

	cart, err := f.orders.AddItems(f.ctx, userID, []services.CartItemRequest{
		{TicketTypeID: tt.ID, Quantity: 1},
		{TicketTypeID: tt.ID, Quantity: 2},
	})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	item := cart.Items[0]
	assert.Equal(t, int64(3), item.Quantity)
	assert.Equal(t, int64(1000), item.UnitPriceInCents)
	assert.Equal(t, int64(100), item.FeeInCents)
	assert.Equal(t, int64(3300), cart.CalculateTotal())
	assert.Equal(t, models.OrderTypeCart, cart.OrderType)
	assert.Equal(t, models.OrderStatusDraft, cart.Status)

	// A later price change does not touch the snapshot.
	tt.PriceInCents = 9000
	require.NoError(t, f.store.CreateTicketType(f.ctx, tt))
	cart, err = f.orders.AddItems(f.ctx, userID, []services.CartItemRequest{{TicketTypeID: tt.ID, Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(4), cart.Items[0].Quantity)
	assert.Equal(t, int64(1000), cart.Items[0].UnitPriceInCents)
	assert.Equal(t, int64(4), f.statusCounts(t, tt)[models.TicketInstanceStatusReserved])
}

func TestAddItemsKeepsRedemptionCodesApart(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 2})
	asset, err := f.store.FindAssetForTicketType(f.ctx, tt.ID)
	require.NoError(t, err)
	_, err = f.inventory.Mint(f.ctx, services.MintRequest{
		AssetID: asset.ID, TicketTypeID: tt.ID, WalletID: f.issuer.ID, Quantity: 1, HoldCode: strPtr("PRESALE"),
	})
	require.NoError(t, err)

	cart, err := f.orders.AddItems(f.ctx, uuid.New(), []services.CartItemRequest{
		{TicketTypeID: tt.ID, Quantity: 1},
		{TicketTypeID: tt.ID, Quantity: 1, RedemptionCode: strPtr("PRESALE")},
	})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestAddItemsEmptyRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.AddItems(f.ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, apperr.ErrEmptyRequest)
}

func TestAddItemsIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	plenty := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 5})
	scarce := f.ticketType(t, ticketTypeOpts{price: 2000, capacity: 1})
	userID := uuid.New()

	_, err := f.orders.AddItems(f.ctx, userID, []services.CartItemRequest{
		{TicketTypeID: plenty.ID, Quantity: 2},
		{TicketTypeID: scarce.ID, Quantity: 2},
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientInventory)

	_, err = f.orders.FindCart(f.ctx, userID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int64(5), f.statusCounts(t, plenty)[models.TicketInstanceStatusAvailable])
	assert.Equal(t, int64(1), f.statusCounts(t, scarce)[models.TicketInstanceStatusAvailable])
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 5})
	userID := uuid.New()
	cart := f.addToCart(t, userID, tt, 3)
	itemID := cart.Items[0].ID

	cart, err := f.orders.RemoveItem(f.ctx, userID, itemID, int64Ptr(1))
	require.NoError(t, err)
	require.NotNil(t, cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].Quantity)
	assert.Equal(t, int64(2), f.statusCounts(t, tt)[models.TicketInstanceStatusReserved])

	_, err = f.orders.RemoveItem(f.ctx, userID, itemID, int64Ptr(3))
	assert.ErrorIs(t, err, apperr.ErrReleaseExceedsReserved)

	cart, err = f.orders.RemoveItem(f.ctx, userID, itemID, nil)
	require.NoError(t, err)
	assert.Nil(t, cart)

	_, err = f.orders.FindCart(f.ctx, userID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int64(5), f.statusCounts(t, tt)[models.TicketInstanceStatusAvailable])
}

func TestRemoveItemOfAnotherUser(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 5})
	cart := f.addToCart(t, uuid.New(), tt, 2)

	_, err := f.orders.RemoveItem(f.ctx, uuid.New(), cart.Items[0].ID, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int64(2), f.statusCounts(t, tt)[models.TicketInstanceStatusReserved])
}

func TestRemoveItemFromPaidOrder(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 5})
	userID := uuid.New()
	cart := f.addToCart(t, userID, tt, 2)
	_, err := f.cardCheckout(userID, cart)
	require.NoError(t, err)

	_, err = f.orders.RemoveItem(f.ctx, userID, cart.Items[0].ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidOrderStatus)
}

func TestFindOrderHidesOtherUsersOrders(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 5})
	userID := uuid.New()
	cart := f.addToCart(t, userID, tt, 1)

	found, err := f.orders.FindOrder(f.ctx, userID, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, found.ID)

	_, err = f.orders.FindOrder(f.ctx, uuid.New(), cart.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSweepDeletesLapsedCart(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 5})
	userID := uuid.New()
	f.addToCart(t, userID, tt, 2)

	released, err := f.orders.SweepExpiredReservations(f.ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, released)

	f.clock.Advance(16 * time.Minute)
	released, err = f.orders.SweepExpiredReservations(f.ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	_, err = f.orders.FindCart(f.ctx, userID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int64(5), f.statusCounts(t, tt)[models.TicketInstanceStatusAvailable])
}

func TestSweepShrinksPartiallyLapsedItem(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, ticketTypeOpts{price: 1000, capacity: 5})
	userID := uuid.New()
	f.addToCart(t, userID, tt, 2)
	f.clock.Advance(10 * time.Minute)
	f.addToCart(t, userID, tt, 1)
	f.clock.Advance(6 * time.Minute)

	released, err := f.orders.SweepExpiredReservations(f.ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	cart, err := f.orders.FindCart(f.ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].Quantity)

	live, err := f.inventory.ReservationsLive(f.ctx, &cart.Items[0])
	require.NoError(t, err)
	assert.True(t, live)
}
