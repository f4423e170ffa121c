// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/config"
	"github.com/javajoker/ticketing-backend/internal/database"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/repository/gormstore"
	"github.com/javajoker/ticketing-backend/internal/services"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

func main() {
	eventName := flag.String("event", "Demo Night", "event name")
	capacity := flag.Int64("capacity", 500, "tickets to mint")
	price := flag.Int64("price", 2500, "ticket price in cents")
	startsIn := flag.Duration("starts-in", 14*24*time.Hour, "time until the event starts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	ctx := context.Background()
	store := gormstore.New(db)
	clk := clock.NewSystem()
	inventory := services.NewInventoryService(store, clk)
	wallets := services.NewWalletService(store)

	logrus.Info("--- Seeding Database ---")

	var ticketType models.TicketType
	err = store.WithTx(ctx, func(ctx context.Context) error {
		issuer, err := wallets.CreateOrganizationWallet(ctx, uuid.New(), *eventName+" Box Office")
		if err != nil {
			return err
		}

		schedule := &models.FeeSchedule{
			Name: "Standard",
			Ranges: []models.FeeScheduleRange{
				{MinPriceInCents: 0, FeeInCents: 150},
				{MinPriceInCents: 5000, FeeInCents: 300},
			},
		}
		if err := store.CreateFeeSchedule(ctx, schedule); err != nil {
			return err
		}

		event := &models.Event{Name: *eventName, EventStart: clk.Now().Add(*startsIn)}
		if err := store.CreateEvent(ctx, event); err != nil {
			return err
		}

		ticketType = models.TicketType{
			EventID:       event.ID,
			Name:          "General Admission",
			PriceInCents:  *price,
			FeeScheduleID: &schedule.ID,
		}
		if err := store.CreateTicketType(ctx, &ticketType); err != nil {
			return err
		}

		suffix, err := utils.GenerateRandomString(12)
		if err != nil {
			return err
		}
		ledgerID := "demo-" + suffix
		asset := &models.Asset{TicketTypeID: ticketType.ID, BlockchainAssetID: &ledgerID}
		if err := store.CreateAsset(ctx, asset); err != nil {
			return err
		}

		_, err = inventory.Mint(ctx, services.MintRequest{
			AssetID:      asset.ID,
			TicketTypeID: ticketType.ID,
			WalletID:     issuer.ID,
			Quantity:     *capacity,
		})
		return err
	})
	if err != nil {
		logrus.WithError(err).Fatal("Seeding failed")
	}

	logrus.WithFields(logrus.Fields{
		"ticket_type_id": ticketType.ID,
		"capacity":       *capacity,
	}).Info("Seeded ticket type")

	// Tokens for trying the API by hand.
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	demoUsers := []struct {
		role   string
		scopes []string
	}{
		{"buyer", nil},
		{"box-office", []string{utils.ScopeExternalPayment}},
		{"door", []string{utils.ScopeRedeemTicket}},
	}
	for _, u := range demoUsers {
		token, err := utils.GenerateJWT(uuid.New(), u.role+"@example.com", u.role, u.scopes, cfg.JWT.AccessTokenTTL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to sign demo token")
		}
		logrus.WithFields(logrus.Fields{"role": u.role, "token": token}).Info("Demo token")
	}
}
