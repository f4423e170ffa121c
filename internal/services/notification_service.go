// internal/services/notification_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/payments"
)

const (
	IPNExpiry      = 30 * 24 * time.Hour
	IPNMaxAttempts = 5
)

// NotificationService accepts payment provider notifications and applies
// them to payments once they come off the domain action queue.
type NotificationService struct {
	actions  *DomainActionService
	checkout *CheckoutService
	payments PaymentStore
	archive  *StorageService
	expiry   time.Duration
	attempts int
	log      *logrus.Entry
}

type NotificationOption func(*NotificationService)

// WithIPNRetention overrides how long and how often an IPN is retried.
func WithIPNRetention(expiry time.Duration, attempts int) NotificationOption {
	return func(s *NotificationService) {
		if expiry > 0 {
			s.expiry = expiry
		}
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

func NewNotificationService(actions *DomainActionService, checkout *CheckoutService, paymentStore PaymentStore, archive *StorageService, opts ...NotificationOption) *NotificationService {
	svc := &NotificationService{
		actions:  actions,
		checkout: checkout,
		payments: paymentStore,
		archive:  archive,
		expiry:   IPNExpiry,
		attempts: IPNMaxAttempts,
		log:      logrus.WithField("service", "notification"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	actions.RegisterExecutor(models.DomainActionTypePaymentProviderIPN, ActionExecutorFunc(svc.ExecutePaymentIPN))
	return svc
}

// ReceivePaymentIPN queues a raw IPN body for processing. Nothing about the
// payment changes until the queued action runs.
func (s *NotificationService) ReceivePaymentIPN(ctx context.Context, provider string, body []byte) (*models.DomainAction, error) {
	var payload models.JSONB
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, "IPN body is not a JSON object", err)
	}
	payload["provider"] = provider

	action, err := s.actions.Enqueue(ctx, NewDomainAction{
		Type:        models.DomainActionTypePaymentProviderIPN,
		Payload:     payload,
		ExpiresIn:   s.expiry,
		MaxAttempts: s.attempts,
	})
	if err != nil {
		return nil, err
	}

	if s.archive != nil && s.archive.Enabled() {
		if _, err := s.archive.ArchivePayload(ctx, "ipn/"+provider, action.ID, body); err != nil {
			s.log.WithError(err).WithField("action_id", action.ID).Warn("Failed to archive IPN payload")
		}
	}
	return action, nil
}

// ExecutePaymentIPN applies one queued IPN. A "paid" status completes the
// payment at most once; any other status is only added to the audit trail.
func (s *NotificationService) ExecutePaymentIPN(ctx context.Context, action *models.DomainAction) error {
	var ipn payments.GlobeeIPN
	raw, err := json.Marshal(action.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode IPN payload: %w", err)
	}
	if err := json.Unmarshal(raw, &ipn); err != nil {
		return fmt.Errorf("failed to decode IPN payload: %w", err)
	}

	logger := s.log.WithFields(logrus.Fields{
		"action_id": action.ID,
		"ipn_id":    ipn.ID,
	})
	if ipn.CustomPaymentID == nil || *ipn.CustomPaymentID == "" {
		logger.Warn("IPN has no payment id, ignoring")
		return nil
	}

	paymentID, err := uuid.Parse(*ipn.CustomPaymentID)
	if err != nil {
		return apperr.Invalid("IPN payment id is not a uuid: " + *ipn.CustomPaymentID)
	}
	payment, err := s.payments.FindPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	status := ""
	if ipn.Status != nil {
		status = strings.ToLower(*ipn.Status)
	}
	logger = logger.WithFields(logrus.Fields{"payment_id": paymentID, "status": status})

	if status != "paid" {
		logger.Info("Recording IPN on payment")
		return s.payments.CreatePaymentEvent(ctx, &models.PaymentEvent{
			PaymentID: payment.ID,
			EventType: "ipn:" + status,
			Payload:   action.Payload,
		})
	}

	transitioned, err := s.checkout.CompletePayment(ctx, payment.ID, action.Payload)
	if err != nil {
		return err
	}
	if !transitioned {
		logger.Info("Payment already completed, ignoring repeated IPN")
		return nil
	}

	if err := s.checkout.Settle(ctx, payment.OrderID); err != nil {
		logger.WithError(err).Error("Settlement failed after IPN payment, order needs manual remediation")
	}
	return nil
}
