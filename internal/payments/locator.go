// internal/payments/locator.go
package payments

import (
	"strings"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/config"
)

// Locator resolves a provider name to its processor.
type Locator interface {
	PaymentProcessor(provider string) (Processor, error)
}

type ServiceLocator struct {
	processors map[string]Processor
}

func NewServiceLocator(cfg config.PaymentConfig) *ServiceLocator {
	l := NewStaticLocator(map[string]Processor{
		ProviderStripe: NewStripeProcessor(cfg.StripeSecretKey),
	})
	if cfg.GlobeeAPIKey != "" {
		client := NewGlobeeClient(cfg.GlobeeAPIKey, cfg.GlobeeBaseURL, nil)
		l.processors[ProviderGlobee] = NewGlobeeProcessor(client, GlobeeURLs{
			NotifyURL:  cfg.GlobeeNotifyURL,
			SuccessURL: cfg.GlobeeSuccessURL,
			CancelURL:  cfg.GlobeeCancelURL,
		})
	}
	return l
}

// NewStaticLocator serves a fixed set of processors.
func NewStaticLocator(processors map[string]Processor) *ServiceLocator {
	m := make(map[string]Processor, len(processors))
	for name, p := range processors {
		m[strings.ToLower(name)] = p
	}
	return &ServiceLocator{processors: m}
}

func (l *ServiceLocator) PaymentProcessor(provider string) (Processor, error) {
	p, ok := l.processors[strings.ToLower(provider)]
	if !ok {
		return nil, apperr.Invalid("unknown payment provider: " + provider)
	}
	return p, nil
}
