// internal/payments/stripe_test.go
package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
)

func newStripeTestProcessor(t *testing.T, handler http.HandlerFunc) *StripeProcessor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
	})
	return NewStripeProcessorWithBackends("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeCompleteAuthedCharge(t *testing.T) {
	processor := newStripeTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_123/capture", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "pi_123", "object": "payment_intent", "status": "succeeded", "amount_received": 2500}`))
	})

	behavior, ok := processor.Behavior().(AuthThenCaptureBehavior)
	require.True(t, ok)

	result, err := behavior.CompleteAuthedCharge(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", result.ID)
}

func TestStripeRefundCancelsUncapturedAuthorization(t *testing.T) {
	var calls []string
	processor := newStripeTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/payment_intents/pi_123":
			w.Write([]byte(`{"id": "pi_123", "object": "payment_intent", "status": "requires_capture"}`))
		case "/v1/payment_intents/pi_123/cancel":
			w.Write([]byte(`{"id": "pi_123", "object": "payment_intent", "status": "canceled"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": {"message": "unexpected", "type": "invalid_request_error"}}`))
		}
	})

	result, err := processor.Refund(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", result.ID)
	assert.Equal(t, []string{"GET /v1/payment_intents/pi_123", "POST /v1/payment_intents/pi_123/cancel"}, calls)
}

func TestStripeErrorsAreProcessorErrors(t *testing.T) {
	processor := newStripeTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error": {"message": "Your card was declined.", "type": "card_error", "code": "card_declined"}}`))
	})

	behavior := processor.Behavior().(AuthThenCaptureBehavior)
	_, err := behavior.Auth(context.Background(), AuthRequest{Token: "pm_card_visa", AmountInCents: 1000, Currency: "usd"})
	require.Error(t, err)

	var perr *ProcessorError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Description, "Your card was declined.")
}
