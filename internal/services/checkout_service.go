// internal/services/checkout_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/metrics"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/payments"
)

type CheckoutMethodType string

const (
	CheckoutMethodExternal      CheckoutMethodType = "External"
	CheckoutMethodCard          CheckoutMethodType = "Card"
	CheckoutMethodPaymentMethod CheckoutMethodType = "PaymentMethod"
)

type CheckoutMethod struct {
	Type              CheckoutMethodType `json:"type" validate:"required,oneof=External Card PaymentMethod"`
	Reference         string             `json:"reference,omitempty"`
	Token             string             `json:"token,omitempty"`
	Provider          string             `json:"provider,omitempty"`
	SavePaymentMethod bool               `json:"save_payment_method,omitempty"`
	SetDefault        bool               `json:"set_default,omitempty"`
}

type CheckoutRequest struct {
	AmountInCents int64          `json:"amount" validate:"min=0"`
	Method        CheckoutMethod `json:"method"`
}

// Actor is the caller of a checkout.
type Actor struct {
	UserID           uuid.UUID
	Email            string
	CanPayExternally bool
}

type CheckoutResult struct {
	Order       *models.Order   `json:"order"`
	Payment     *models.Payment `json:"payment"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

const defaultPaymentRequestTTL = 30 * time.Minute

type CheckoutService struct {
	store      Store
	inventory  *InventoryService
	wallets    *WalletService
	locator    payments.Locator
	ledger     TokenTransferer
	clock      clock.Clock
	currency   string
	requestTTL time.Duration
	log        *logrus.Entry
}

type CheckoutOption func(*CheckoutService)

// WithPaymentRequestTTL sets how long a hosted payment request holds the
// order's tickets before another checkout may replace it.
func WithPaymentRequestTTL(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) {
		if d > 0 {
			s.requestTTL = d
		}
	}
}

func NewCheckoutService(store Store, inventory *InventoryService, wallets *WalletService, locator payments.Locator, ledger TokenTransferer, clk clock.Clock, currency string, opts ...CheckoutOption) *CheckoutService {
	svc := &CheckoutService{
		store:      store,
		inventory:  inventory,
		wallets:    wallets,
		locator:    locator,
		ledger:     ledger,
		clock:      clk,
		currency:   currency,
		requestTTL: defaultPaymentRequestTTL,
		log:        logrus.WithField("service", "checkout"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Checkout runs one payment attempt for a draft order. When payment
// succeeds but settlement on the ledger fails, the order stays Paid and the
// result is returned together with the settlement error.
func (s *CheckoutService) Checkout(ctx context.Context, actor Actor, orderID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	start := time.Now()
	method := string(req.Method.Type)
	defer func() {
		metrics.CheckoutDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	result, err := s.checkout(ctx, actor, orderID, req)
	outcome := "success"
	switch {
	case err == nil && result.RedirectURL != "":
		outcome = "redirected"
	case err != nil && result != nil:
		outcome = "settlement_failed"
	case err != nil:
		outcome = "failed"
	}
	metrics.CheckoutsTotal.WithLabelValues(method, outcome).Inc()
	return result, err
}

func (s *CheckoutService) checkout(ctx context.Context, actor Actor, orderID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPreconditions(ctx, actor, order, req); err != nil {
		return nil, err
	}

	logger := s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  actor.UserID,
		"method":   req.Method.Type,
	})

	switch req.Method.Type {
	case CheckoutMethodExternal:
		return s.payExternally(ctx, actor, order, req, logger)
	case CheckoutMethodCard, CheckoutMethodPaymentMethod:
		return s.payWithProvider(ctx, actor, order, req, logger)
	default:
		return nil, apperr.Invalid("unsupported payment method: " + string(req.Method.Type))
	}
}

func (s *CheckoutService) checkPreconditions(ctx context.Context, actor Actor, order *models.Order, req CheckoutRequest) error {
	if !order.IsDraft() {
		return apperr.New(apperr.CodeInvalidOrderStatus, fmt.Sprintf("order is %s, only draft orders can be checked out", order.Status))
	}
	if req.Method.Type == CheckoutMethodExternal {
		if !actor.CanPayExternally {
			return apperr.New(apperr.CodeForbidden, "external payments require the external payment permission")
		}
		if req.Method.Reference == "" {
			return apperr.Invalid("external payments need a reference")
		}
	} else if order.UserID != actor.UserID {
		return apperr.New(apperr.CodeForbidden, "order belongs to another user")
	}
	if len(order.Items) == 0 {
		return apperr.New(apperr.CodeEmptyRequest, "order has no items")
	}
	if total := order.CalculateTotal(); req.AmountInCents != total {
		return apperr.Invalid(fmt.Sprintf("amount %d does not match order total %d", req.AmountInCents, total))
	}
	if err := s.replaceLapsedPayment(ctx, order); err != nil {
		return err
	}

	for i := range order.Items {
		live, err := s.inventory.ReservationsLive(ctx, &order.Items[i])
		if err != nil {
			return err
		}
		if !live {
			return apperr.New(apperr.CodeReservationExpired, "tickets for one or more items are no longer reserved")
		}
	}

	return s.checkAssetsProvisioned(ctx, order.ID)
}

// replaceLapsedPayment fails while another payment for the order is in
// flight. A hosted payment request past its window is expired instead and
// the order's holds renewed, so the buyer can pay another way.
func (s *CheckoutService) replaceLapsedPayment(ctx context.Context, order *models.Order) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.store.LockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		live, lapsed, err := livePayment(ctx, s.store, locked.ID, now, s.log)
		if err != nil {
			return err
		}
		if live != nil {
			return apperr.New(apperr.CodeInvalidOrderStatus, "order already has a payment in progress")
		}
		if !lapsed {
			return nil
		}
		return s.holdUntil(ctx, locked, now.Add(s.inventory.HoldWindow()))
	})
}

func (s *CheckoutService) checkAssetsProvisioned(ctx context.Context, orderID uuid.UUID) error {
	tickets, err := s.store.FindTicketsForOrder(ctx, orderID)
	if err != nil {
		return err
	}
	seen := make(map[uuid.UUID]bool)
	for _, t := range tickets {
		if seen[t.AssetID] {
			continue
		}
		seen[t.AssetID] = true
		asset, err := s.store.FindAsset(ctx, t.AssetID)
		if err != nil {
			return err
		}
		if !asset.IsProvisioned() {
			return apperr.New(apperr.CodeAssetNotProvisioned,
				fmt.Sprintf("asset %s has not been assigned on the blockchain", asset.ID))
		}
	}
	return nil
}

func (s *CheckoutService) payExternally(ctx context.Context, actor Actor, order *models.Order, req CheckoutRequest, logger *logrus.Entry) (*CheckoutResult, error) {
	payment := &models.Payment{
		OrderID:           order.ID,
		CreatedBy:         actor.UserID,
		Status:            models.PaymentStatusAuthorized,
		PaymentMethod:     models.PaymentMethodExternal,
		Provider:          "external",
		ExternalReference: req.Method.Reference,
		AmountInCents:     req.AmountInCents,
		Currency:          s.currency,
	}
	if err := s.recordPayment(ctx, payment); err != nil {
		return nil, err
	}

	if _, err := s.finalize(ctx, payment.ID, models.JSONB{"reference": req.Method.Reference}); err != nil {
		s.closePayment(ctx, payment, models.PaymentStatusFailed, "finalize", logger)
		return nil, err
	}
	logger.WithField("payment_id", payment.ID).Info("Recorded external payment")
	return s.settleAfterPayment(ctx, order.ID, payment.ID, logger)
}

func (s *CheckoutService) payWithProvider(ctx context.Context, actor Actor, order *models.Order, req CheckoutRequest, logger *logrus.Entry) (*CheckoutResult, error) {
	provider := req.Method.Provider
	var stored *models.PaymentMethod
	if req.Method.Type == CheckoutMethodPaymentMethod {
		var err error
		stored, err = s.findStoredMethod(ctx, actor.UserID, provider)
		if err != nil {
			return nil, err
		}
		provider = stored.Name
	}
	if provider == "" {
		return nil, apperr.Invalid("payment provider is required")
	}

	processor, err := s.locator.PaymentProcessor(provider)
	if err != nil {
		return nil, err
	}

	switch behavior := processor.Behavior().(type) {
	case payments.AuthThenCaptureBehavior:
		token := req.Method.Token
		if stored != nil {
			token = stored.Provider
		} else {
			if token == "" {
				return nil, apperr.Invalid("card token is required")
			}
			if req.Method.SavePaymentMethod {
				token, err = s.saveRepeatToken(ctx, behavior, actor.UserID, req.Method)
				if err != nil {
					return nil, err
				}
			}
		}
		return s.authThenCapture(ctx, actor, order, req, processor, behavior, token, logger)
	case payments.RedirectBehavior:
		return s.redirect(ctx, actor, order, req, processor, behavior, logger)
	default:
		return nil, apperr.Invalid("provider " + provider + " has no supported payment behavior")
	}
}

func (s *CheckoutService) findStoredMethod(ctx context.Context, userID uuid.UUID, provider string) (*models.PaymentMethod, error) {
	var (
		method *models.PaymentMethod
		err    error
	)
	if provider != "" {
		method, err = s.store.FindPaymentMethod(ctx, userID, provider)
	} else {
		method, err = s.store.FindDefaultPaymentMethod(ctx, userID)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Invalid("no default payment method")
	}
	return method, err
}

// saveRepeatToken creates or refreshes the user's stored method for the
// provider and returns the repeat-charge token to charge.
func (s *CheckoutService) saveRepeatToken(ctx context.Context, behavior payments.AuthThenCaptureBehavior, userID uuid.UUID, method CheckoutMethod) (string, error) {
	name := behavior.Name()
	existing, err := s.store.FindPaymentMethod(ctx, userID, name)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}

	description := "Ticketing customer " + userID.String()
	var repeat *payments.RepeatChargeToken
	if existing != nil {
		repeat, err = behavior.UpdateRepeatToken(ctx, existing.Provider, method.Token, description)
	} else {
		repeat, err = behavior.CreateRepeatToken(ctx, method.Token, description)
	}
	if err != nil {
		return "", processorError("failed to save payment method", err)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if method.SetDefault {
			if err := s.store.ClearDefaultPaymentMethods(ctx, userID); err != nil {
				return err
			}
		}
		if existing != nil {
			existing.Provider = repeat.Token
			existing.ProviderData = repeat.Extra
			existing.IsDefault = existing.IsDefault || method.SetDefault
			return s.store.SavePaymentMethod(ctx, existing)
		}
		return s.store.CreatePaymentMethod(ctx, &models.PaymentMethod{
			UserID:       userID,
			Name:         name,
			IsDefault:    method.SetDefault,
			Provider:     repeat.Token,
			ProviderData: repeat.Extra,
		})
	})
	if err != nil {
		return "", err
	}
	return repeat.Token, nil
}

func (s *CheckoutService) authThenCapture(ctx context.Context, actor Actor, order *models.Order, req CheckoutRequest, processor payments.Processor, behavior payments.AuthThenCaptureBehavior, token string, logger *logrus.Entry) (*CheckoutResult, error) {
	auth, err := behavior.Auth(ctx, payments.AuthRequest{
		Token:         token,
		AmountInCents: req.AmountInCents,
		Currency:      s.currency,
		Description:   fmt.Sprintf("Ticket order %s", order.ID),
		Metadata: map[string]string{
			"order_id": order.ID.String(),
			"user_id":  actor.UserID.String(),
		},
	})
	if err != nil {
		return nil, processorError("payment authorization failed", err)
	}
	logger = logger.WithField("auth_id", auth.ID)

	payment := &models.Payment{
		OrderID:           order.ID,
		CreatedBy:         actor.UserID,
		Status:            models.PaymentStatusAuthorized,
		PaymentMethod:     models.PaymentMethodCard,
		Provider:          behavior.Name(),
		ExternalReference: auth.ID,
		AmountInCents:     req.AmountInCents,
		Currency:          s.currency,
		ProviderData:      auth.Extra,
	}
	// The authorization is committed on its own so a crash before capture
	// leaves a recoverable Authorized payment.
	if err := s.recordPayment(ctx, payment); err != nil {
		logger.WithError(err).Error("Failed to record authorized payment, refunding")
		s.refund(ctx, processor, auth.ID, "record_auth", logger)
		return nil, err
	}

	charge, err := behavior.CompleteAuthedCharge(ctx, auth.ID)
	if err != nil {
		logger.WithError(err).Error("Capture failed, refunding authorization")
		s.abandonPayment(ctx, processor, payment, "capture", logger)
		return nil, processorError("payment capture failed", err)
	}

	if _, err := s.finalize(ctx, payment.ID, charge.Extra); err != nil {
		logger.WithError(err).Error("Failed to finalize captured payment, refunding")
		s.abandonPayment(ctx, processor, payment, "finalize", logger)
		return nil, err
	}

	logger.WithField("payment_id", payment.ID).Info("Payment captured")
	return s.settleAfterPayment(ctx, order.ID, payment.ID, logger)
}

func (s *CheckoutService) redirect(ctx context.Context, actor Actor, order *models.Order, req CheckoutRequest, processor payments.Processor, behavior payments.RedirectBehavior, logger *logrus.Entry) (*CheckoutResult, error) {
	expiresAt := s.clock.Now().Add(s.requestTTL)
	payment := &models.Payment{
		OrderID:       order.ID,
		CreatedBy:     actor.UserID,
		Status:        models.PaymentStatusAuthorized,
		PaymentMethod: models.PaymentMethodRedirect,
		Provider:      behavior.Name(),
		AmountInCents: req.AmountInCents,
		Currency:      s.currency,
		ExpiresAt:     &expiresAt,
	}
	if err := s.recordPayment(ctx, payment); err != nil {
		return nil, err
	}

	info, err := behavior.CreatePaymentRequest(ctx, payments.PaymentPageRequest{
		AmountInCents:   req.AmountInCents,
		Currency:        s.currency,
		Email:           actor.Email,
		CustomPaymentID: payment.ID.String(),
	})
	if err != nil {
		payment.Status = models.PaymentStatusFailed
		if saveErr := s.store.SavePayment(ctx, payment); saveErr != nil {
			logger.WithError(saveErr).Error("Failed to mark payment request as failed")
		}
		return nil, processorError("failed to create payment request", err)
	}

	// The buyer's tickets stay held for as long as the request is open.
	payment.ExternalReference = info.ID
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.SavePayment(ctx, payment); err != nil {
			return err
		}
		return s.holdUntil(ctx, order, *payment.ExpiresAt)
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"request_id": info.ID,
	}).Info("Created hosted payment request")
	return &CheckoutResult{Order: order, Payment: payment, RedirectURL: info.RedirectURL}, nil
}

// recordPayment inserts an Authorized payment once the order is confirmed
// to still be a draft with the paid total.
func (s *CheckoutService) recordPayment(ctx context.Context, payment *models.Payment) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.store.LockOrder(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if !order.IsDraft() {
			return apperr.New(apperr.CodeInvalidOrderStatus, "order is no longer a draft")
		}
		if err := checkTotal(order, payment); err != nil {
			return err
		}
		return s.store.CreatePayment(ctx, payment)
	})
}

func (s *CheckoutService) holdUntil(ctx context.Context, order *models.Order, until time.Time) error {
	for _, item := range order.Items {
		if _, err := s.inventory.ExtendHolds(ctx, item.ID, until); err != nil {
			return err
		}
	}
	return nil
}

func checkTotal(order *models.Order, payment *models.Payment) error {
	if total := order.CalculateTotal(); total != payment.AmountInCents {
		return apperr.New(apperr.CodeInvalidOrderStatus,
			fmt.Sprintf("order total is %d but the payment is for %d", total, payment.AmountInCents))
	}
	return nil
}

// finalize completes an Authorized payment, marks its order Paid and
// commits the reserved tickets in one transaction. It reports false when
// the payment was already Completed. A hosted payment request that lapsed
// can still complete while its order is an unpaid draft with the same total.
func (s *CheckoutService) finalize(ctx context.Context, paymentID uuid.UUID, extra models.JSONB) (bool, error) {
	var transitioned bool
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		found, err := s.store.FindPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		// Order before payment, the same lock order as cart changes.
		order, err := s.store.LockOrder(ctx, found.OrderID)
		if err != nil {
			return err
		}
		payment, err := s.store.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == models.PaymentStatusCompleted {
			return nil
		}
		if payment.Status != models.PaymentStatusAuthorized && payment.Status != models.PaymentStatusExpired {
			return apperr.New(apperr.CodeInvalidOrderStatus,
				fmt.Sprintf("payment is %s, only authorized payments can be completed", payment.Status))
		}
		if !order.IsDraft() {
			return apperr.New(apperr.CodeInvalidOrderStatus, fmt.Sprintf("order is %s", order.Status))
		}
		if err := checkTotal(order, payment); err != nil {
			return err
		}
		if payment.Status == models.PaymentStatusExpired {
			s.log.WithField("payment_id", payment.ID).Warn("Completing a payment whose request had lapsed")
		}
		for i := range order.Items {
			if err := s.inventory.CommitPurchase(ctx, &order.Items[i]); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		payment.Status = models.PaymentStatusCompleted
		if len(extra) > 0 {
			data := models.JSONB{}
			for k, v := range payment.ProviderData {
				data[k] = v
			}
			for k, v := range extra {
				data[k] = v
			}
			payment.ProviderData = data
		}
		if err := s.store.SavePayment(ctx, payment); err != nil {
			return err
		}

		order.Status = models.OrderStatusPaid
		order.OrderType = models.OrderTypePurchase
		order.PaidAt = &now
		if err := s.store.SaveOrder(ctx, order); err != nil {
			return err
		}

		if err := s.store.CreatePaymentEvent(ctx, &models.PaymentEvent{
			PaymentID: payment.ID,
			EventType: "completed",
			Payload:   extra,
		}); err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	return transitioned, err
}

// CompletePayment applies a provider's "paid" notification. Completing an
// already Completed payment is a no-op reported as false.
func (s *CheckoutService) CompletePayment(ctx context.Context, paymentID uuid.UUID, payload models.JSONB) (bool, error) {
	transitioned, err := s.finalize(ctx, paymentID, payload)
	if err != nil {
		return false, err
	}
	if transitioned {
		s.log.WithField("payment_id", paymentID).Info("Payment completed by notification")
	}
	return transitioned, nil
}

// abandonPayment refunds a payment that will not complete and records the
// outcome. A payment whose refund also fails is marked Failed.
func (s *CheckoutService) abandonPayment(ctx context.Context, processor payments.Processor, payment *models.Payment, stage string, logger *logrus.Entry) {
	status := models.PaymentStatusRefunded
	if err := s.refund(ctx, processor, payment.ExternalReference, stage, logger); err != nil {
		status = models.PaymentStatusFailed
	}
	s.closePayment(ctx, payment, status, stage, logger)
}

// closePayment moves a payment to a terminal status and audits the stage
// that ended it.
func (s *CheckoutService) closePayment(ctx context.Context, payment *models.Payment, status models.PaymentStatus, stage string, logger *logrus.Entry) {
	payment.Status = status
	ctx = context.WithoutCancel(ctx)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.store.LockPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		current.Status = status
		if err := s.store.SavePayment(ctx, current); err != nil {
			return err
		}
		return s.store.CreatePaymentEvent(ctx, &models.PaymentEvent{
			PaymentID: current.ID,
			EventType: string(current.Status),
			Payload:   models.JSONB{"stage": stage},
		})
	})
	if err != nil {
		logger.WithError(err).Error("Failed to record abandoned payment")
	}
}

// livePayment returns the order's open payment. An Authorized payment past
// its request window is marked Expired on the way and reported as lapsed
// instead. Callers hold the order lock.
func livePayment(ctx context.Context, store InFlightPaymentStore, orderID uuid.UUID, now time.Time, log *logrus.Entry) (*models.Payment, bool, error) {
	found, err := store.FindActivePaymentForOrder(ctx, orderID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !found.RequestLapsed(now) {
		return found, false, nil
	}

	payment, err := store.LockPayment(ctx, found.ID)
	if err != nil {
		return nil, false, err
	}
	if !payment.RequestLapsed(now) {
		if payment.Status.IsActive() {
			return payment, false, nil
		}
		return nil, false, nil
	}
	payment.Status = models.PaymentStatusExpired
	if err := store.SavePayment(ctx, payment); err != nil {
		return nil, false, err
	}
	if err := store.CreatePaymentEvent(ctx, &models.PaymentEvent{
		PaymentID: payment.ID,
		EventType: string(models.PaymentStatusExpired),
		Payload:   models.JSONB{"expires_at": payment.ExpiresAt.Format(time.RFC3339)},
	}); err != nil {
		return nil, false, err
	}
	log.WithFields(logrus.Fields{
		"order_id":   orderID,
		"payment_id": payment.ID,
	}).Warn("Payment request lapsed without completion")
	return nil, true, nil
}

func (s *CheckoutService) refund(ctx context.Context, processor payments.Processor, authID, stage string, logger *logrus.Entry) error {
	_, err := processor.Refund(context.WithoutCancel(ctx), authID)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		logger.WithError(err).WithField("stage", stage).Error("Compensating refund failed, manual action required")
	}
	metrics.CompensatingRefundsTotal.WithLabelValues(stage, outcome).Inc()
	return err
}

func (s *CheckoutService) settleAfterPayment(ctx context.Context, orderID, paymentID uuid.UUID, logger *logrus.Entry) (*CheckoutResult, error) {
	settleErr := s.Settle(ctx, orderID)
	if settleErr != nil {
		logger.WithError(settleErr).Error("Settlement failed after payment, order needs manual remediation")
	}

	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payment, err := s.store.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Order: order, Payment: payment}, settleErr
}

type settlementGroup struct {
	assetID  uuid.UUID
	walletID uuid.UUID
	tickets  []models.TicketInstance
}

// Settle moves a paid order's tickets from their issuing wallets to the
// buyer's default wallet on the ledger, then records the new owner.
// Tickets already moved are skipped, so it can be re-run after a failure.
// A failure never reverses the payment.
func (s *CheckoutService) Settle(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPaid {
		return apperr.New(apperr.CodeInvalidOrderStatus, "only paid orders can be settled")
	}

	buyer, err := s.wallets.DefaultWalletForUser(ctx, order.UserID)
	if err != nil {
		return err
	}
	tickets, err := s.store.FindTicketsForOrder(ctx, order.ID)
	if err != nil {
		return err
	}

	groups := map[[2]uuid.UUID]*settlementGroup{}
	for _, t := range tickets {
		if t.WalletID == buyer.ID {
			continue
		}
		key := [2]uuid.UUID{t.AssetID, t.WalletID}
		g, ok := groups[key]
		if !ok {
			g = &settlementGroup{assetID: t.AssetID, walletID: t.WalletID}
			groups[key] = g
		}
		g.tickets = append(g.tickets, t)
	}

	ordered := make([]*settlementGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].assetID != ordered[j].assetID {
			return ordered[i].assetID.String() < ordered[j].assetID.String()
		}
		return ordered[i].walletID.String() < ordered[j].walletID.String()
	})

	for _, g := range ordered {
		if err := s.settleGroup(ctx, g, buyer); err != nil {
			metrics.SettlementsTotal.WithLabelValues("failure").Inc()
			return err
		}
	}
	metrics.SettlementsTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *CheckoutService) settleGroup(ctx context.Context, g *settlementGroup, buyer *models.Wallet) error {
	sender, err := s.store.FindWallet(ctx, g.walletID)
	if err != nil {
		return err
	}
	if sender.UserID != nil {
		// Held by a user already, e.g. received through a transfer.
		return nil
	}

	asset, err := s.store.FindAsset(ctx, g.assetID)
	if err != nil {
		return err
	}
	if !asset.IsProvisioned() {
		return apperr.New(apperr.CodeAssetNotProvisioned,
			fmt.Sprintf("asset %s has not been assigned on the blockchain", asset.ID))
	}

	tokenIDs := make([]uint64, 0, len(g.tickets))
	ids := make([]uuid.UUID, 0, len(g.tickets))
	for _, t := range g.tickets {
		tokenIDs = append(tokenIDs, uint64(t.TokenID))
		ids = append(ids, t.ID)
	}

	txHash, err := s.ledger.TransferTokens(ctx, TokenTransfer{
		SenderSecretKey:    sender.SecretKey,
		SenderPublicKey:    sender.PublicKey,
		AssetID:            *asset.BlockchainAssetID,
		TokenIDs:           tokenIDs,
		RecipientPublicKey: buyer.PublicKey,
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeSettlement, fmt.Sprintf("failed to transfer tokens of asset %s", asset.ID), err)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.store.LockTickets(ctx, ids)
		if err != nil {
			return err
		}
		for i := range locked {
			if locked[i].WalletID == g.walletID {
				locked[i].WalletID = buyer.ID
			}
		}
		return s.store.SaveTickets(ctx, locked)
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeSettlement, "ledger transfer "+txHash+" succeeded but wallets were not updated", err)
	}

	s.log.WithFields(logrus.Fields{
		"asset_id": asset.ID,
		"tokens":   len(tokenIDs),
		"tx_hash":  txHash,
	}).Info("Settled tickets on ledger")
	return nil
}

// processorError keeps the provider error in the chain under the
// payment processor code.
func processorError(message string, err error) error {
	var perr *payments.ProcessorError
	if errors.As(err, &perr) {
		return apperr.Wrap(apperr.CodePaymentProcessor, message, perr)
	}
	return apperr.Wrap(apperr.CodePaymentProcessor, message, payments.NewProcessorError(message, err))
}
