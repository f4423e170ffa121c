// internal/payments/processor.go

// Package payments adapts external payment providers to one interface.
// A provider either authorizes then captures a charge, or redirects the
// buyer to a hosted payment page and reports back through an IPN.
package payments

import (
	"context"
)

type RepeatChargeToken struct {
	Token string
	Extra map[string]interface{}
}

type ChargeAuthResult struct {
	ID    string
	Extra map[string]interface{}
}

type ChargeResult struct {
	ID    string
	Extra map[string]interface{}
}

type RedirectInfo struct {
	ID          string
	RedirectURL string
}

type AuthRequest struct {
	Token         string
	AmountInCents int64
	Currency      string
	Description   string
	Metadata      map[string]string
}

type PaymentPageRequest struct {
	AmountInCents   int64
	Currency        string
	Email           string
	CustomPaymentID string
}

// Behavior is implemented by exactly one of AuthThenCaptureBehavior or
// RedirectBehavior. Callers switch on the concrete interface.
type Behavior interface {
	Name() string
}

type AuthThenCaptureBehavior interface {
	Behavior
	CreateRepeatToken(ctx context.Context, token, description string) (*RepeatChargeToken, error)
	UpdateRepeatToken(ctx context.Context, repeatToken, token, description string) (*RepeatChargeToken, error)
	Auth(ctx context.Context, req AuthRequest) (*ChargeAuthResult, error)
	CompleteAuthedCharge(ctx context.Context, authToken string) (*ChargeResult, error)
}

type RedirectBehavior interface {
	Behavior
	CreatePaymentRequest(ctx context.Context, req PaymentPageRequest) (*RedirectInfo, error)
}

type Processor interface {
	Behavior() Behavior
	Refund(ctx context.Context, authToken string) (*ChargeAuthResult, error)
	PartialRefund(ctx context.Context, authToken string, amountInCents int64) (*ChargeAuthResult, error)
}
