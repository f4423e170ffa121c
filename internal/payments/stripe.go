// internal/payments/stripe.go
package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

const ProviderStripe = "stripe"

// StripeProcessor authorizes with a manual-capture PaymentIntent and keeps
// Stripe customers as repeat-charge tokens.
type StripeProcessor struct {
	api *client.API
}

func NewStripeProcessor(secretKey string) *StripeProcessor {
	return NewStripeProcessorWithBackends(secretKey, nil)
}

// NewStripeProcessorWithBackends is used to point the client at a test server.
func NewStripeProcessorWithBackends(secretKey string, backends *stripe.Backends) *StripeProcessor {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeProcessor{api: api}
}

func (p *StripeProcessor) Behavior() Behavior {
	return &stripeBehavior{api: p.api}
}

// Refund releases an uncaptured authorization, or refunds a captured one.
func (p *StripeProcessor) Refund(ctx context.Context, authToken string) (*ChargeAuthResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.api.PaymentIntents.Get(authToken, params)
	if err != nil {
		return nil, stripeError("failed to load payment intent", err)
	}

	if intent.Status == stripe.PaymentIntentStatusRequiresCapture {
		cancelParams := &stripe.PaymentIntentCancelParams{}
		cancelParams.Context = ctx
		cancelled, err := p.api.PaymentIntents.Cancel(authToken, cancelParams)
		if err != nil {
			return nil, stripeError("failed to cancel authorization", err)
		}
		return &ChargeAuthResult{ID: cancelled.ID, Extra: map[string]interface{}{"status": string(cancelled.Status)}}, nil
	}

	return p.refund(ctx, authToken, nil)
}

func (p *StripeProcessor) PartialRefund(ctx context.Context, authToken string, amountInCents int64) (*ChargeAuthResult, error) {
	return p.refund(ctx, authToken, stripe.Int64(amountInCents))
}

func (p *StripeProcessor) refund(ctx context.Context, intentID string, amount *int64) (*ChargeAuthResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        amount,
	}
	params.Context = ctx
	r, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, stripeError("failed to refund payment", err)
	}
	return &ChargeAuthResult{ID: r.ID, Extra: map[string]interface{}{"status": string(r.Status), "amount": r.Amount}}, nil
}

type stripeBehavior struct {
	api *client.API
}

func (b *stripeBehavior) Name() string {
	return ProviderStripe
}

func (b *stripeBehavior) CreateRepeatToken(ctx context.Context, token, description string) (*RepeatChargeToken, error) {
	params := &stripe.CustomerParams{
		Description:   stripe.String(description),
		PaymentMethod: stripe.String(token),
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(token),
		},
	}
	params.Context = ctx
	customer, err := b.api.Customers.New(params)
	if err != nil {
		return nil, stripeError("failed to create customer", err)
	}
	return &RepeatChargeToken{Token: customer.ID, Extra: map[string]interface{}{"payment_method": token}}, nil
}

func (b *stripeBehavior) UpdateRepeatToken(ctx context.Context, repeatToken, token, description string) (*RepeatChargeToken, error) {
	attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(repeatToken)}
	attach.Context = ctx
	if _, err := b.api.PaymentMethods.Attach(token, attach); err != nil {
		return nil, stripeError("failed to attach payment method", err)
	}

	params := &stripe.CustomerParams{
		Description: stripe.String(description),
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(token),
		},
	}
	params.Context = ctx
	customer, err := b.api.Customers.Update(repeatToken, params)
	if err != nil {
		return nil, stripeError("failed to update customer", err)
	}
	return &RepeatChargeToken{Token: customer.ID, Extra: map[string]interface{}{"payment_method": token}}, nil
}

// Auth accepts either a payment method id or a customer id. A customer is
// charged through its default payment method.
func (b *stripeBehavior) Auth(ctx context.Context, req AuthRequest) (*ChargeAuthResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountInCents),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		Description:        stripe.String(req.Description),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:            stripe.Bool(true),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	if strings.HasPrefix(req.Token, "cus_") {
		customerParams := &stripe.CustomerParams{}
		customerParams.Context = ctx
		customer, err := b.api.Customers.Get(req.Token, customerParams)
		if err != nil {
			return nil, stripeError("failed to load customer", err)
		}
		if customer.InvoiceSettings == nil || customer.InvoiceSettings.DefaultPaymentMethod == nil {
			return nil, NewProcessorError("customer has no default payment method", nil)
		}
		params.Customer = stripe.String(customer.ID)
		params.PaymentMethod = stripe.String(customer.InvoiceSettings.DefaultPaymentMethod.ID)
	} else {
		params.PaymentMethod = stripe.String(req.Token)
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := b.api.PaymentIntents.New(params)
	if err != nil {
		return nil, stripeError("failed to authorize charge", err)
	}
	if intent.Status != stripe.PaymentIntentStatusRequiresCapture {
		return nil, NewProcessorError("charge was not authorized: "+string(intent.Status), nil)
	}

	return &ChargeAuthResult{ID: intent.ID, Extra: map[string]interface{}{"status": string(intent.Status)}}, nil
}

func (b *stripeBehavior) CompleteAuthedCharge(ctx context.Context, authToken string) (*ChargeResult, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	intent, err := b.api.PaymentIntents.Capture(authToken, params)
	if err != nil {
		return nil, stripeError("failed to capture charge", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, NewProcessorError("charge was not captured: "+string(intent.Status), nil)
	}
	return &ChargeResult{ID: intent.ID, Extra: map[string]interface{}{"status": string(intent.Status), "amount_received": intent.AmountReceived}}, nil
}

func stripeError(description string, err error) *ProcessorError {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return NewProcessorError(description+": "+stripeErr.Msg, err)
	}
	return NewProcessorError(description, err)
}
