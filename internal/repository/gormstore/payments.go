// internal/repository/gormstore/payments.go
package gormstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

var activePaymentStatuses = []models.PaymentStatus{models.PaymentStatusAuthorized, models.PaymentStatusCompleted}

func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	err := s.conn(ctx).Create(payment).Error
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeInvalidOrderStatus, "order already has an active payment", err)
	}
	return translate(err, "payment", "create payment")
}

func (s *Store) SavePayment(ctx context.Context, payment *models.Payment) error {
	err := s.conn(ctx).Save(payment).Error
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeInvalidOrderStatus, "order already has an active payment", err)
	}
	return translate(err, "payment", "save payment")
}

func (s *Store) FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.conn(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, translate(err, "payment", "find payment")
	}
	return &payment, nil
}

func (s *Store) LockPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.conn(ctx).Clauses(lockForUpdate).First(&payment, "id = ?", id).Error; err != nil {
		return nil, translate(err, "payment", "lock payment")
	}
	return &payment, nil
}

func (s *Store) FindActivePaymentForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.conn(ctx).
		Where("order_id = ? AND status IN ?", orderID, activePaymentStatuses).
		First(&payment).Error
	if err != nil {
		return nil, translate(err, "payment", "find active payment")
	}
	return &payment, nil
}

func (s *Store) CreatePaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	return translate(s.conn(ctx).Create(event).Error, "payment event", "create payment event")
}

func (s *Store) FindPaymentEvents(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := s.conn(ctx).Where("payment_id = ?", paymentID).Order("created_at").Find(&events).Error
	return events, translate(err, "payment event", "find payment events")
}

func (s *Store) FindPaymentMethod(ctx context.Context, userID uuid.UUID, name string) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	if err := s.conn(ctx).First(&method, "user_id = ? AND name = ?", userID, name).Error; err != nil {
		return nil, translate(err, "payment method", "find payment method")
	}
	return &method, nil
}

func (s *Store) FindDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	if err := s.conn(ctx).First(&method, "user_id = ? AND is_default = ?", userID, true).Error; err != nil {
		return nil, translate(err, "default payment method", "find default payment method")
	}
	return &method, nil
}

func (s *Store) CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	return translate(s.conn(ctx).Create(method).Error, "payment method", "create payment method")
}

func (s *Store) SavePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	return translate(s.conn(ctx).Save(method).Error, "payment method", "save payment method")
}

func (s *Store) ClearDefaultPaymentMethods(ctx context.Context, userID uuid.UUID) error {
	err := s.conn(ctx).
		Model(&models.PaymentMethod{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
	return translate(err, "payment method", "clear default payment methods")
}

func (s *Store) FindPaymentsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var found []models.Payment
	err := s.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&found).Error
	return found, translate(err, "payment", "find order payments")
}
