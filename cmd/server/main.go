// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/config"
	"github.com/javajoker/ticketing-backend/internal/database"
	"github.com/javajoker/ticketing-backend/internal/i18n"
	"github.com/javajoker/ticketing-backend/internal/payments"
	"github.com/javajoker/ticketing-backend/internal/repository/gormstore"
	"github.com/javajoker/ticketing-backend/internal/router"
	"github.com/javajoker/ticketing-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	// Initialize i18n
	if err := i18n.Initialize(); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	clk := clock.NewSystem()
	archive, err := services.NewStorageService(cfg.AWS, clk)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize payload archive")
	}

	svc := router.NewServices(cfg, router.Dependencies{
		Store:   gormstore.New(db),
		Locator: payments.NewServiceLocator(cfg.Payment),
		Ledger:  services.NewBlockchainService(cfg.Blockchain),
		Archive: archive,
		Clock:   clk,
	})
	r := router.Initialize(cfg, svc)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logrus.Info("Shutting down server...")

		// Create a deadline for shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Inventory.SweepEnabled {
		g.Go(func() error {
			return svc.Orders.RunSweeper(ctx, cfg.Inventory.SweepEvery(), cfg.Inventory.SweepBatchSize)
		})
	}

	if cfg.DomainActions.Enabled {
		g.Go(func() error {
			return svc.Actions.Run(ctx, cfg.DomainActions.PollEvery())
		})
	}

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}

	logrus.Info("Server exited")
}
