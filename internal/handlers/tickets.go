// internal/handlers/tickets.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/i18n"
	"github.com/javajoker/ticketing-backend/internal/services"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

type TicketHandler struct {
	ticketService   *services.TicketService
	transferService *services.TransferService
}

func NewTicketHandler(ticketService *services.TicketService, transferService *services.TransferService) *TicketHandler {
	return &TicketHandler{
		ticketService:   ticketService,
		transferService: transferService,
	}
}

type RedeemTicketRequest struct {
	RedeemKey string `json:"redeem_key" validate:"required"`
}

// GET /tickets
func (h *TicketHandler) ListTickets(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	tickets, err := h.ticketService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.Paginate(tickets, utils.GetPaginationParams(c)))
}

// GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.ShowRedeemable(c.Request.Context(), userID, ticketID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, ticket)
}

// POST /tickets/:id/redeem
// Called by venue staff holding the redeem scope.
func (h *TicketHandler) RedeemTicket(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req RedeemTicketRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.ticketService.Redeem(c.Request.Context(), ticketID, req.RedeemKey)
	if err != nil {
		respondError(c, err)
		return
	}

	if result != services.RedeemSuccess {
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, string(result), i18n.T(lang, i18n.KeyTicketNotRedeemed), gin.H{
			"result": result,
		})
		return
	}

	utils.SuccessResponse(c, gin.H{
		"result":  result,
		"message": i18n.T(lang, i18n.KeyTicketRedeemed),
	})
}

// POST /tickets/transfer
func (h *TicketHandler) AuthorizeTransfer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.AuthorizeTransferRequest
	if !bind(c, &req) {
		return
	}

	grant, err := h.transferService.Authorize(c.Request.Context(), userID, req.TicketIDs, req.TTLSeconds)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, grant)
}

// POST /tickets/receive
func (h *TicketHandler) ReceiveTransfer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.ReceiveTransferRequest
	if !bind(c, &req) {
		return
	}

	tickets, err := h.transferService.ReceiveToken(c.Request.Context(), req.Token, userID)
	if errors.Is(err, apperr.ErrInvalidInput) {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyTransferInvalid), nil)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"tickets": tickets,
	})
}
