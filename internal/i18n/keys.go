// internal/i18n/keys.go
package i18n

import "fmt"

// Translation keys constants
const (
	// Common
	KeyValidationInvalid = "validation.invalid"
	KeyNotFound          = "common.not_found"
	KeyRateLimited       = "common.rate_limited"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"
	KeyAccessDenied     = "auth.access_denied"

	// Tickets
	KeyTicketRedeemed    = "ticket.redeemed"
	KeyTicketNotRedeemed = "ticket.not_redeemable"
	KeyTransferInvalid   = "transfer.invalid_token"
)

// ErrorKey is the translation key for an application error code.
func ErrorKey(code int) string {
	return fmt.Sprintf("error.%d", code)
}
