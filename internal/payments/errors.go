// internal/payments/errors.go
package payments

import (
	"github.com/javajoker/ticketing-backend/internal/apperr"
)

// ProcessorError is returned by every provider call.
type ProcessorError struct {
	Description string
	Cause       error
}

func NewProcessorError(description string, cause error) *ProcessorError {
	return &ProcessorError{Description: description, Cause: cause}
}

func (e *ProcessorError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Description {
		return e.Description + ": " + e.Cause.Error()
	}
	return e.Description
}

func (e *ProcessorError) Unwrap() error {
	return e.Cause
}

// Is lets callers match any provider failure against apperr.ErrPaymentProcessor.
func (e *ProcessorError) Is(target error) bool {
	return target == apperr.ErrPaymentProcessor
}
