// internal/payments/locator_test.go
package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/config"
)

func TestServiceLocator(t *testing.T) {
	locator := NewServiceLocator(config.PaymentConfig{StripeSecretKey: "sk_test_123"})

	p, err := locator.PaymentProcessor("Stripe")
	require.NoError(t, err)
	_, ok := p.Behavior().(AuthThenCaptureBehavior)
	assert.True(t, ok)

	_, err = locator.PaymentProcessor("globee")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = locator.PaymentProcessor("paypal")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestServiceLocatorWithGlobee(t *testing.T) {
	locator := NewServiceLocator(config.PaymentConfig{
		StripeSecretKey: "sk_test_123",
		GlobeeAPIKey:    "key",
		GlobeeBaseURL:   "https://test.globee.com/payment-api/v1/",
	})

	p, err := locator.PaymentProcessor("globee")
	require.NoError(t, err)
	_, ok := p.Behavior().(RedirectBehavior)
	assert.True(t, ok)
}
