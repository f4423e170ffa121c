// internal/handlers/ipn.go
package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/ticketing-backend/internal/payments"
	"github.com/javajoker/ticketing-backend/internal/services"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

const maxIPNBodyBytes = 1 << 20

type IPNHandler struct {
	notificationService *services.NotificationService
}

func NewIPNHandler(notificationService *services.NotificationService) *IPNHandler {
	return &IPNHandler{
		notificationService: notificationService,
	}
}

// POST /ipns/globee
// The notification is only queued here; the provider gets its 200 before
// the payment is touched.
func (h *IPNHandler) Globee(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIPNBodyBytes))
	if err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	action, err := h.notificationService.ReceivePaymentIPN(c.Request.Context(), payments.ProviderGlobee, body)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"id": action.ID,
	})
}
