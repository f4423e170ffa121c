// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/config"
	"github.com/javajoker/ticketing-backend/internal/handlers"
	"github.com/javajoker/ticketing-backend/internal/middleware"
	"github.com/javajoker/ticketing-backend/internal/payments"
	"github.com/javajoker/ticketing-backend/internal/services"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

const version = "1.0.0"

// Dependencies are the outside collaborators of the service graph.
type Dependencies struct {
	Store   services.Store
	Locator payments.Locator
	Ledger  services.TokenTransferer
	Archive *services.StorageService
	Clock   clock.Clock
}

// Services is the wired service graph shared by the HTTP handlers and the
// background workers.
type Services struct {
	Inventory     *services.InventoryService
	Wallets       *services.WalletService
	Orders        *services.OrderService
	Checkout      *services.CheckoutService
	Transfers     *services.TransferService
	Tickets       *services.TicketService
	Actions       *services.DomainActionService
	Notifications *services.NotificationService
}

func NewServices(cfg *config.Config, deps Dependencies) *Services {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	inventory := services.NewInventoryService(deps.Store, clk, services.WithHoldWindow(cfg.Inventory.HoldWindow()))
	wallets := services.NewWalletService(deps.Store)
	transfers := services.NewTransferService(deps.Store, inventory, wallets, clk)
	checkout := services.NewCheckoutService(deps.Store, inventory, wallets, deps.Locator, deps.Ledger, clk, cfg.Payment.PrimaryCurrency,
		services.WithPaymentRequestTTL(cfg.Payment.RequestTTL()))

	actions := services.NewDomainActionService(deps.Store, clk,
		services.WithBatchSize(cfg.DomainActions.BatchSize),
		services.WithVisibilityTimeout(cfg.DomainActions.Visibility()),
	)

	return &Services{
		Inventory: inventory,
		Wallets:   wallets,
		Orders:    services.NewOrderService(deps.Store, inventory, clk),
		Checkout:  checkout,
		Transfers: transfers,
		Tickets:   services.NewTicketService(deps.Store, inventory, wallets, transfers, clk),
		Actions:   actions,
		Notifications: services.NewNotificationService(actions, checkout, deps.Store, deps.Archive,
			services.WithIPNRetention(cfg.DomainActions.IPNExpiry(), cfg.DomainActions.IPNMaxAttempts)),
	}
}

func Initialize(cfg *config.Config, svc *Services) *gin.Engine {
	// Initialize handlers
	cartHandler := handlers.NewCartHandler(svc.Orders, svc.Checkout)
	ticketHandler := handlers.NewTicketHandler(svc.Tickets, svc.Transfers)
	ipnHandler := handlers.NewIPNHandler(svc.Notifications)

	// Set token secrets
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetTransferSecret(cfg.JWT.TransferSecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logrus.WithField("panic", recovered).Error("Recovered from panic")
		utils.InternalErrorResponse(c, "")
		c.Abort()
	}))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowOrigins))
	r.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		utils.NotFoundResponse(c, "route")
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Cart routes
		cart := v1.Group("/cart")
		cart.Use(middleware.AuthRequired())
		{
			cart.GET("", cartHandler.GetCart)
			cart.POST("", cartHandler.AddItems)
			cart.DELETE("/items/:id", cartHandler.RemoveItem)
			cart.POST("/checkout", cartHandler.Checkout)
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.POST("/:id/checkout", cartHandler.CheckoutOrder)
		}

		// Ticket routes
		tickets := v1.Group("/tickets")
		tickets.Use(middleware.AuthRequired())
		{
			tickets.GET("", ticketHandler.ListTickets)
			tickets.GET("/:id", ticketHandler.GetTicket)
			tickets.POST("/:id/redeem", middleware.RequireScope(utils.ScopeRedeemTicket), ticketHandler.RedeemTicket)
			tickets.POST("/transfer", middleware.TransferRateLimit(), ticketHandler.AuthorizeTransfer)
			tickets.POST("/receive", middleware.TransferRateLimit(), ticketHandler.ReceiveTransfer)
		}

		// Payment provider notifications (public)
		ipns := v1.Group("/ipns")
		{
			ipns.POST("/globee", ipnHandler.Globee)
		}
	}

	return r
}
