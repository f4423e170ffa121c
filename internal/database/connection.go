// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/ticketing-backend/internal/config"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Database connection established successfully")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.Event{},
		&models.FeeSchedule{},
		&models.FeeScheduleRange{},
		&models.TicketType{},
		&models.Asset{},
		&models.Wallet{},
		&models.Order{},
		&models.OrderItem{},
		&models.TicketInstance{},
		&models.Payment{},
		&models.PaymentEvent{},
		&models.PaymentMethod{},
		&models.TransferAuthorization{},
		&models.DomainAction{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Ticket indexes
		"CREATE INDEX IF NOT EXISTS idx_ticket_instances_type_status ON ticket_instances(ticket_type_id, status, token_id)",
		"CREATE INDEX IF NOT EXISTS idx_ticket_instances_reserved_until ON ticket_instances(reserved_until) WHERE status = 'reserved'",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_user_cart ON orders(user_id, order_type, status)",

		// Payment indexes
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_payments_active_order ON payments(order_id) WHERE status IN ('authorized', 'completed')",
		"CREATE INDEX IF NOT EXISTS idx_payment_methods_user ON payment_methods(user_id, name)",

		// Wallet indexes
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_wallets_default_user ON wallets(user_id) WHERE default_flag AND user_id IS NOT NULL",

		// Domain action indexes
		"CREATE INDEX IF NOT EXISTS idx_domain_actions_runnable ON domain_actions(status, scheduled_at, blocked_until)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			return fmt.Errorf("%s: %w", index, err)
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
