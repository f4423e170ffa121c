// internal/repository/memstore/payments.go
package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return s.run(ctx, func() error {
		if payment.Status.IsActive() {
			for _, p := range s.data.payments {
				if p.OrderID == payment.OrderID && p.Status.IsActive() {
					return apperr.New(apperr.CodeInvalidOrderStatus, "order already has an active payment")
				}
			}
		}
		s.stamp(&payment.BaseModel, true)
		s.data.payments[payment.ID] = *payment
		return nil
	})
}

func (s *Store) SavePayment(ctx context.Context, payment *models.Payment) error {
	return s.run(ctx, func() error {
		if _, ok := s.data.payments[payment.ID]; !ok {
			return apperr.NotFound("payment")
		}
		if payment.Status.IsActive() {
			for id, p := range s.data.payments {
				if id != payment.ID && p.OrderID == payment.OrderID && p.Status.IsActive() {
					return apperr.New(apperr.CodeInvalidOrderStatus, "order already has an active payment")
				}
			}
		}
		s.stamp(&payment.BaseModel, false)
		s.data.payments[payment.ID] = *payment
		return nil
	})
}

func (s *Store) FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return find(s, ctx, func(t *tables) map[uuid.UUID]models.Payment { return t.payments }, id, "payment")
}

func (s *Store) LockPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.FindPayment(ctx, id)
}

func (s *Store) FindActivePaymentForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var out *models.Payment
	err := s.run(ctx, func() error {
		for _, p := range s.data.payments {
			if p.OrderID == orderID && p.Status.IsActive() {
				out = &p
				return nil
			}
		}
		return apperr.NotFound("payment")
	})
	return out, err
}

func (s *Store) CreatePaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	return s.run(ctx, func() error {
		s.stamp(&event.BaseModel, true)
		s.data.paymentEvents[event.ID] = *event
		return nil
	})
}

func (s *Store) FindPaymentEvents(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentEvent, error) {
	var out []models.PaymentEvent
	err := s.run(ctx, func() error {
		for _, e := range s.data.paymentEvents {
			if e.PaymentID == paymentID {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

func (s *Store) FindPaymentMethod(ctx context.Context, userID uuid.UUID, name string) (*models.PaymentMethod, error) {
	var out *models.PaymentMethod
	err := s.run(ctx, func() error {
		for _, m := range s.data.paymentMethods {
			if m.UserID == userID && m.Name == name {
				out = &m
				return nil
			}
		}
		return apperr.NotFound("payment method")
	})
	return out, err
}

func (s *Store) FindDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*models.PaymentMethod, error) {
	var out *models.PaymentMethod
	err := s.run(ctx, func() error {
		for _, m := range s.data.paymentMethods {
			if m.UserID == userID && m.IsDefault {
				out = &m
				return nil
			}
		}
		return apperr.NotFound("default payment method")
	})
	return out, err
}

func (s *Store) CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	return s.run(ctx, func() error {
		s.stamp(&method.BaseModel, true)
		s.data.paymentMethods[method.ID] = *method
		return nil
	})
}

func (s *Store) SavePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	return s.run(ctx, func() error {
		s.stamp(&method.BaseModel, false)
		s.data.paymentMethods[method.ID] = *method
		return nil
	})
}

func (s *Store) ClearDefaultPaymentMethods(ctx context.Context, userID uuid.UUID) error {
	return s.run(ctx, func() error {
		for id, m := range s.data.paymentMethods {
			if m.UserID == userID && m.IsDefault {
				m.IsDefault = false
				s.data.paymentMethods[id] = m
			}
		}
		return nil
	})
}

func (s *Store) FindPaymentsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	err := s.run(ctx, func() error {
		for _, p := range s.data.payments {
			if p.OrderID == orderID {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}
