// internal/repository/gormstore/store_test.go
package gormstore_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/database"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/repository/gormstore"
	"github.com/javajoker/ticketing-backend/internal/services"
)

// openStore connects to TEST_DATABASE_DSN and skips the test without one.
func openStore(t *testing.T) *gormstore.Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))
	t.Cleanup(func() { database.Close(db) })
	return gormstore.New(db)
}

func seedTicketType(t *testing.T, store *gormstore.Store, inventory *services.InventoryService, capacity int64) *models.TicketType {
	t.Helper()
	ctx := context.Background()

	issuer, err := services.NewWalletService(store).CreateOrganizationWallet(ctx, uuid.New(), "Issuer")
	require.NoError(t, err)
	event := &models.Event{Name: "Integration", EventStart: clock.NewSystem().Now().AddDate(0, 0, 7)}
	require.NoError(t, store.CreateEvent(ctx, event))
	tt := &models.TicketType{EventID: event.ID, Name: "General", PriceInCents: 1000}
	require.NoError(t, store.CreateTicketType(ctx, tt))
	ledgerID := "asset-" + tt.ID.String()[:8]
	asset := &models.Asset{TicketTypeID: tt.ID, BlockchainAssetID: &ledgerID}
	require.NoError(t, store.CreateAsset(ctx, asset))

	_, err = inventory.Mint(ctx, services.MintRequest{
		AssetID: asset.ID, TicketTypeID: tt.ID, WalletID: issuer.ID, Quantity: capacity,
	})
	require.NoError(t, err)
	return tt
}

func TestReserveNeverOversellsOnPostgres(t *testing.T) {
	store := openStore(t)
	inventory := services.NewInventoryService(store, clock.NewSystem())
	tt := seedTicketType(t, store, inventory, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		reserved  int
		shortages int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := inventory.Reserve(context.Background(), uuid.New(), tt.ID, 1, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reserved++
			case errors.Is(err, apperr.ErrInsufficientInventory):
				shortages++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, reserved)
	assert.Equal(t, 10, shortages)
}

func TestRollbackLeavesNoTrace(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	inventory := services.NewInventoryService(store, clock.NewSystem())
	tt := seedTicketType(t, store, inventory, 3)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := inventory.Reserve(ctx, uuid.New(), tt.ID, 2, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	counts, err := inventory.Availability(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[models.TicketInstanceStatusAvailable])
}

func TestOneActivePaymentPerOrder(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	order := &models.Order{UserID: uuid.New(), OrderType: models.OrderTypeCart, Status: models.OrderStatusDraft}
	require.NoError(t, store.CreateOrder(ctx, order))

	newPayment := func() *models.Payment {
		return &models.Payment{
			OrderID:       order.ID,
			CreatedBy:     order.UserID,
			Status:        models.PaymentStatusAuthorized,
			PaymentMethod: models.PaymentMethodCard,
			Provider:      "stripe",
			AmountInCents: 1000,
			Currency:      "usd",
		}
	}
	require.NoError(t, store.CreatePayment(ctx, newPayment()))

	err := store.CreatePayment(ctx, newPayment())
	assert.ErrorIs(t, err, apperr.ErrInvalidOrderStatus)

	_, err = store.FindPayment(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
