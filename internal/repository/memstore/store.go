// internal/repository/memstore/store.go

// Package memstore is an in-process store with the same transactional
// behaviour as the Postgres store. One mutex serializes transactions;
// a failed transaction restores the snapshot taken when it began.
package memstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/models"
)

type txKey struct{}

type tables struct {
	events         map[uuid.UUID]models.Event
	ticketTypes    map[uuid.UUID]models.TicketType
	feeSchedules   map[uuid.UUID]models.FeeSchedule
	assets         map[uuid.UUID]models.Asset
	tickets        map[uuid.UUID]models.TicketInstance
	orders         map[uuid.UUID]models.Order
	orderItems     map[uuid.UUID]models.OrderItem
	payments       map[uuid.UUID]models.Payment
	paymentEvents  map[uuid.UUID]models.PaymentEvent
	paymentMethods map[uuid.UUID]models.PaymentMethod
	wallets        map[uuid.UUID]models.Wallet
	transfers      map[uuid.UUID]models.TransferAuthorization
	actions        map[uuid.UUID]models.DomainAction
}

func newTables() tables {
	return tables{
		events:         map[uuid.UUID]models.Event{},
		ticketTypes:    map[uuid.UUID]models.TicketType{},
		feeSchedules:   map[uuid.UUID]models.FeeSchedule{},
		assets:         map[uuid.UUID]models.Asset{},
		tickets:        map[uuid.UUID]models.TicketInstance{},
		orders:         map[uuid.UUID]models.Order{},
		orderItems:     map[uuid.UUID]models.OrderItem{},
		payments:       map[uuid.UUID]models.Payment{},
		paymentEvents:  map[uuid.UUID]models.PaymentEvent{},
		paymentMethods: map[uuid.UUID]models.PaymentMethod{},
		wallets:        map[uuid.UUID]models.Wallet{},
		transfers:      map[uuid.UUID]models.TransferAuthorization{},
		actions:        map[uuid.UUID]models.DomainAction{},
	}
}

func (t tables) clone() tables {
	return tables{
		events:         maps.Clone(t.events),
		ticketTypes:    maps.Clone(t.ticketTypes),
		feeSchedules:   maps.Clone(t.feeSchedules),
		assets:         maps.Clone(t.assets),
		tickets:        maps.Clone(t.tickets),
		orders:         maps.Clone(t.orders),
		orderItems:     maps.Clone(t.orderItems),
		payments:       maps.Clone(t.payments),
		paymentEvents:  maps.Clone(t.paymentEvents),
		paymentMethods: maps.Clone(t.paymentMethods),
		wallets:        maps.Clone(t.wallets),
		transfers:      maps.Clone(t.transfers),
		actions:        maps.Clone(t.actions),
	}
}

type Store struct {
	mu   sync.Mutex
	data tables
	now  func() time.Time
}

func New() *Store {
	return &Store{data: newTables(), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.data = snapshot
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// run executes a single statement, taking the lock unless ctx already
// holds it.
func (s *Store) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) stamp(base *models.BaseModel, creating bool) {
	now := s.now()
	if creating {
		if base.ID == uuid.Nil {
			base.ID = uuid.New()
		}
		if base.CreatedAt.IsZero() {
			base.CreatedAt = now
		}
	}
	base.UpdatedAt = now
}
