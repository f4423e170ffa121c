// internal/handlers/cart.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/services"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

type CartHandler struct {
	orderService    *services.OrderService
	checkoutService *services.CheckoutService
}

func NewCartHandler(orderService *services.OrderService, checkoutService *services.CheckoutService) *CartHandler {
	return &CartHandler{
		orderService:    orderService,
		checkoutService: checkoutService,
	}
}

// GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	cart, err := h.orderService.FindCart(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, cart)
}

// POST /cart
func (h *CartHandler) AddItems(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.AddItemsRequest
	if !bind(c, &req) {
		return
	}

	cart, err := h.orderService.AddItems(c.Request.Context(), userID, req.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, cart)
}

// DELETE /cart/items/:id?quantity=N
// Without a quantity the whole item is removed.
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var quantity *int64
	if raw := c.Query("quantity"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			utils.BadRequestResponse(c, "quantity must be a positive integer", nil)
			return
		}
		quantity = &n
	}

	cart, err := h.orderService.RemoveItem(c.Request.Context(), userID, itemID, quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"cart": cart,
	})
}

// POST /cart/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req services.CheckoutRequest
	if !bind(c, &req) {
		return
	}

	cart, err := h.orderService.FindCart(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.checkout(c, actor, cart.ID, req)
}

// POST /orders/:id/checkout
func (h *CartHandler) CheckoutOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.CheckoutRequest
	if !bind(c, &req) {
		return
	}

	h.checkout(c, actor, orderID, req)
}

func (h *CartHandler) checkout(c *gin.Context, actor services.Actor, orderID uuid.UUID, req services.CheckoutRequest) {
	result, err := h.checkoutService.Checkout(c.Request.Context(), actor, orderID, req)
	if err != nil {
		// Payment went through but delivery did not; the client still gets the order.
		if result != nil {
			respondErrorWithDetails(c, err, result)
			return
		}
		respondError(c, err)
		return
	}

	if result.RedirectURL != "" {
		c.Header("Location", result.RedirectURL)
		utils.AcceptedResponse(c, result)
		return
	}
	utils.SuccessResponse(c, result)
}

func actorFrom(c *gin.Context) (services.Actor, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return services.Actor{}, false
	}

	actor := services.Actor{UserID: userID}
	if email, exists := c.Get("email"); exists {
		actor.Email, _ = email.(string)
	}
	actor.CanPayExternally = hasScope(c, utils.ScopeExternalPayment)
	return actor, true
}

func hasScope(c *gin.Context, scope string) bool {
	claims, ok := utils.GetClaimsFromContext(c)
	return ok && claims.HasScope(scope)
}
