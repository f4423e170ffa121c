// internal/services/store.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/models"
)

// Transactor runs fn inside a transaction carried by ctx. Calls made with
// a ctx that already carries a transaction join it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TicketStore persists ticket instances. Lock* methods take row locks when
// called inside a transaction.
type TicketStore interface {
	Transactor
	CreateTickets(ctx context.Context, tickets []models.TicketInstance) error
	SaveTickets(ctx context.Context, tickets []models.TicketInstance) error
	// LockAvailableTickets locks up to limit Available instances of a ticket
	// type that a request presenting holdCode may take, skipping rows
	// locked by other transactions.
	LockAvailableTickets(ctx context.Context, ticketTypeID uuid.UUID, holdCode *string, limit int) ([]models.TicketInstance, error)
	LockTicketsForOrderItem(ctx context.Context, orderItemID uuid.UUID, status models.TicketInstanceStatus) ([]models.TicketInstance, error)
	// LockTickets locks the given tickets in id order. Missing ids are
	// simply absent from the result.
	LockTickets(ctx context.Context, ids []uuid.UUID) ([]models.TicketInstance, error)
	FindTicket(ctx context.Context, id uuid.UUID) (*models.TicketInstance, error)
	FindTicketsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.TicketInstance, error)
	FindTicketsForWallet(ctx context.Context, walletID uuid.UUID) ([]models.TicketInstance, error)
	FindExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.TicketInstance, error)
	CountTicketsByType(ctx context.Context, ticketTypeID uuid.UUID) (map[models.TicketInstanceStatus]int64, error)
}

type CatalogStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	CreateTicketType(ctx context.Context, ticketType *models.TicketType) error
	FindTicketType(ctx context.Context, id uuid.UUID) (*models.TicketType, error)
	CreateFeeSchedule(ctx context.Context, schedule *models.FeeSchedule) error
	FindFeeSchedule(ctx context.Context, id uuid.UUID) (*models.FeeSchedule, error)
	CreateAsset(ctx context.Context, asset *models.Asset) error
	SaveAsset(ctx context.Context, asset *models.Asset) error
	FindAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	FindAssetForTicketType(ctx context.Context, ticketTypeID uuid.UUID) (*models.Asset, error)
}

// InFlightPaymentStore is what order changes need to see, and lapse, a
// payment still open against the order.
type InFlightPaymentStore interface {
	FindActivePaymentForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	LockPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	SavePayment(ctx context.Context, payment *models.Payment) error
	CreatePaymentEvent(ctx context.Context, event *models.PaymentEvent) error
}

type OrderStore interface {
	Transactor
	CatalogStore
	InFlightPaymentStore
	CreateOrder(ctx context.Context, order *models.Order) error
	SaveOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	// FindOrder and LockOrder load the order's items.
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindCartForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	SaveOrderItem(ctx context.Context, item *models.OrderItem) error
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
	FindOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
}

type PaymentStore interface {
	Transactor
	InFlightPaymentStore
	// CreatePayment and SavePayment fail with InvalidOrderStatus when the
	// order would end up with two Authorized or Completed payments.
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	FindPaymentEvents(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentEvent, error)
	FindPaymentMethod(ctx context.Context, userID uuid.UUID, name string) (*models.PaymentMethod, error)
	FindDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*models.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error
	SavePaymentMethod(ctx context.Context, method *models.PaymentMethod) error
	ClearDefaultPaymentMethods(ctx context.Context, userID uuid.UUID) error
}

type WalletStore interface {
	Transactor
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindDefaultWalletForUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

type TransferStore interface {
	Transactor
	CreateTransferAuthorization(ctx context.Context, auth *models.TransferAuthorization) error
	LockTransferAuthorizationByKey(ctx context.Context, key uuid.UUID) (*models.TransferAuthorization, error)
	SaveTransferAuthorization(ctx context.Context, auth *models.TransferAuthorization) error
	HasConsumedTransferForTicket(ctx context.Context, ticketID uuid.UUID) (bool, error)
}

type ActionStore interface {
	Transactor
	CreateDomainAction(ctx context.Context, action *models.DomainAction) error
	FindDomainAction(ctx context.Context, id uuid.UUID) (*models.DomainAction, error)
	SaveDomainAction(ctx context.Context, action *models.DomainAction) error
	// ClaimDomainActions marks up to limit runnable actions as attempted,
	// blocks them until now+visibility and returns them.
	ClaimDomainActions(ctx context.Context, now time.Time, visibility time.Duration, limit int) ([]models.DomainAction, error)
	// ExpireDomainActions marks pending actions past their expiry.
	ExpireDomainActions(ctx context.Context, now time.Time) (int64, error)
	// FailExhaustedDomainActions marks Errored the pending actions whose
	// last attempt was claimed but never reported back.
	FailExhaustedDomainActions(ctx context.Context, now time.Time) (int64, error)
}

// Store is everything the services need from one backing database.
type Store interface {
	TicketStore
	OrderStore
	PaymentStore
	WalletStore
	TransferStore
	ActionStore
}
