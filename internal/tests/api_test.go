// internal/tests/api_test.go
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/config"
	"github.com/javajoker/ticketing-backend/internal/i18n"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/payments"
	"github.com/javajoker/ticketing-backend/internal/repository/memstore"
	"github.com/javajoker/ticketing-backend/internal/router"
	"github.com/javajoker/ticketing-backend/internal/services"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

// cardProcessor approves every charge.
type cardProcessor struct {
	mu    sync.Mutex
	auths int
}

func (p *cardProcessor) Behavior() payments.Behavior { return p }

func (p *cardProcessor) Name() string { return payments.ProviderStripe }

func (p *cardProcessor) CreateRepeatToken(ctx context.Context, token, description string) (*payments.RepeatChargeToken, error) {
	return &payments.RepeatChargeToken{Token: "cus_" + token}, nil
}

func (p *cardProcessor) UpdateRepeatToken(ctx context.Context, repeatToken, token, description string) (*payments.RepeatChargeToken, error) {
	return &payments.RepeatChargeToken{Token: repeatToken}, nil
}

func (p *cardProcessor) Auth(ctx context.Context, req payments.AuthRequest) (*payments.ChargeAuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.auths++
	return &payments.ChargeAuthResult{ID: fmt.Sprintf("ch_%d", p.auths)}, nil
}

func (p *cardProcessor) CompleteAuthedCharge(ctx context.Context, authToken string) (*payments.ChargeResult, error) {
	return &payments.ChargeResult{ID: authToken}, nil
}

func (p *cardProcessor) Refund(ctx context.Context, authToken string) (*payments.ChargeAuthResult, error) {
	return &payments.ChargeAuthResult{ID: authToken}, nil
}

func (p *cardProcessor) PartialRefund(ctx context.Context, authToken string, amountInCents int64) (*payments.ChargeAuthResult, error) {
	return p.Refund(ctx, authToken)
}

type APITestSuite struct {
	suite.Suite
	ctx        context.Context
	store      *memstore.Store
	svc        *router.Services
	router     *gin.Engine
	ticketType *models.TicketType
	buyer      uuid.UUID
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{AllowOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{
			SecretKey:         "test-secret",
			AccessTokenTTL:    1,
			TransferSecretKey: "test-transfer-secret",
		},
		Payment:       config.PaymentConfig{PrimaryCurrency: "usd"},
		Inventory:     config.InventoryConfig{HoldWindowMinutes: 15},
		DomainActions: config.DomainActionConfig{BatchSize: 10, VisibilityTimeout: 60, IPNExpiryDays: 30, IPNMaxAttempts: 5},
		RateLimit:     config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		I18n:          config.I18nConfig{DefaultLocale: "en"},
	}
}

func (suite *APITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(i18n.Initialize())
}

func (suite *APITestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = memstore.New()
	cfg := testConfig()

	suite.svc = router.NewServices(cfg, router.Dependencies{
		Store:   suite.store,
		Locator: payments.NewStaticLocator(map[string]payments.Processor{payments.ProviderStripe: &cardProcessor{}}),
		Ledger:  services.NewBlockchainService(config.BlockchainConfig{Network: "test"}),
		Clock:   clock.NewSystem(),
	})
	suite.router = router.Initialize(cfg, suite.svc)
	suite.buyer = uuid.New()

	issuer, err := suite.svc.Wallets.CreateOrganizationWallet(suite.ctx, uuid.New(), "Box Office")
	suite.Require().NoError(err)

	event := &models.Event{Name: "Late Show", EventStart: time.Now().Add(12 * time.Hour)}
	suite.Require().NoError(suite.store.CreateEvent(suite.ctx, event))
	suite.ticketType = &models.TicketType{EventID: event.ID, Name: "Floor", PriceInCents: 1000}
	suite.Require().NoError(suite.store.CreateTicketType(suite.ctx, suite.ticketType))
	ledgerID := "asset-floor"
	asset := &models.Asset{TicketTypeID: suite.ticketType.ID, BlockchainAssetID: &ledgerID}
	suite.Require().NoError(suite.store.CreateAsset(suite.ctx, asset))
	_, err = suite.svc.Inventory.Mint(suite.ctx, services.MintRequest{
		AssetID:      asset.ID,
		TicketTypeID: suite.ticketType.ID,
		WalletID:     issuer.ID,
		Quantity:     4,
	})
	suite.Require().NoError(err)
}

func (suite *APITestSuite) token(userID uuid.UUID, scopes ...string) string {
	token, err := utils.GenerateJWT(userID, "user@example.com", "customer", scopes, 1)
	suite.Require().NoError(err)
	return token
}

func (suite *APITestSuite) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &response)
	}
	return w, response
}

func errorCode(response map[string]interface{}) string {
	errBody, _ := response["error"].(map[string]interface{})
	code, _ := errBody["code"].(string)
	return code
}

func (suite *APITestSuite) addToCart(userID uuid.UUID, quantity int) map[string]interface{} {
	w, response := suite.do("POST", "/v1/cart", suite.token(userID), gin.H{
		"items": []gin.H{{"ticket_type_id": suite.ticketType.ID, "quantity": quantity}},
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return response["data"].(map[string]interface{})
}

func (suite *APITestSuite) checkoutCart(userID uuid.UUID, amount int64) (*httptest.ResponseRecorder, map[string]interface{}) {
	return suite.do("POST", "/v1/cart/checkout", suite.token(userID), gin.H{
		"amount": amount,
		"method": gin.H{"type": "Card", "provider": "stripe", "token": "tok_visa"},
	})
}

func (suite *APITestSuite) listTickets(userID uuid.UUID) []interface{} {
	w, response := suite.do("GET", "/v1/tickets", suite.token(userID), nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	tickets, _ := response["data"].([]interface{})
	return tickets
}

func (suite *APITestSuite) TestHealth() {
	w, response := suite.do("GET", "/health", "", nil)

	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("healthy", response["status"])
}

func (suite *APITestSuite) TestMetricsEndpoint() {
	suite.do("GET", "/health", "", nil)
	w, _ := suite.do("GET", "/metrics", "", nil)

	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "ticketing_http_requests_total")
}

func (suite *APITestSuite) TestCartRequiresAuthentication() {
	w, response := suite.do("GET", "/v1/cart", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal("UNAUTHORIZED", errorCode(response))

	w, _ = suite.do("GET", "/v1/cart", "not-a-jwt", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *APITestSuite) TestPurchaseAndTransfer() {
	cart := suite.addToCart(suite.buyer, 2)
	items := cart["items"].([]interface{})
	suite.Require().Len(items, 1)

	w, response := suite.do("GET", "/v1/cart", suite.token(suite.buyer), nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(cart["id"], response["data"].(map[string]interface{})["id"])

	w, response = suite.checkoutCart(suite.buyer, 2000)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	result := response["data"].(map[string]interface{})
	suite.Equal(string(models.OrderStatusPaid), result["order"].(map[string]interface{})["status"])
	suite.Equal(string(models.PaymentStatusCompleted), result["payment"].(map[string]interface{})["status"])

	// The paid cart is gone.
	w, _ = suite.do("GET", "/v1/cart", suite.token(suite.buyer), nil)
	suite.Equal(http.StatusNotFound, w.Code)

	tickets := suite.listTickets(suite.buyer)
	suite.Require().Len(tickets, 2)
	ticketID := tickets[0].(map[string]interface{})["id"]

	w, response = suite.do("POST", "/v1/tickets/transfer", suite.token(suite.buyer), gin.H{
		"ticket_ids":                 []interface{}{ticketID},
		"validity_period_in_seconds": 3600,
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	grant := response["data"].(map[string]interface{})
	suite.EqualValues(1, grant["num_tickets"])
	suite.NotEmpty(grant["token"])

	receiver := uuid.New()
	w, _ = suite.do("POST", "/v1/tickets/receive", suite.token(receiver), gin.H{"token": grant["token"]})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	suite.Len(suite.listTickets(suite.buyer), 1)
	received := suite.listTickets(receiver)
	suite.Require().Len(received, 1)
	suite.Equal(true, received[0].(map[string]interface{})["was_transferred"])

	w, response = suite.do("POST", "/v1/tickets/receive", suite.token(receiver), gin.H{"token": grant["token"]})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Equal("7700", errorCode(response))
}

func (suite *APITestSuite) TestReceiveWithGarbageToken() {
	w, response := suite.do("POST", "/v1/tickets/receive", suite.token(uuid.New()), gin.H{"token": "garbage"})

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal(i18n.T("en", i18n.KeyTransferInvalid), response["error"].(map[string]interface{})["message"])
}

func (suite *APITestSuite) TestUnknownRoute() {
	w, response := suite.do("GET", "/v1/nowhere", "", nil)

	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("NOT_FOUND", errorCode(response))
}

func (suite *APITestSuite) TestInsufficientInventory() {
	w, response := suite.do("POST", "/v1/cart", suite.token(suite.buyer), gin.H{
		"items": []gin.H{{"ticket_type_id": suite.ticketType.ID, "quantity": 5}},
	})

	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Equal("7100", errorCode(response))
}

func (suite *APITestSuite) TestAddItemsValidation() {
	w, response := suite.do("POST", "/v1/cart", suite.token(suite.buyer), gin.H{
		"items": []gin.H{{"ticket_type_id": suite.ticketType.ID, "quantity": 0}},
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("VALIDATION_ERROR", errorCode(response))

	w, response = suite.do("POST", "/v1/cart", suite.token(suite.buyer), gin.H{"items": []gin.H{}})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("3100", errorCode(response))
}

func (suite *APITestSuite) TestRemoveItem() {
	cart := suite.addToCart(suite.buyer, 3)
	itemID := cart["items"].([]interface{})[0].(map[string]interface{})["id"]

	w, response := suite.do("DELETE", fmt.Sprintf("/v1/cart/items/%s?quantity=5", itemID), suite.token(suite.buyer), nil)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Equal("7200", errorCode(response))

	w, response = suite.do("DELETE", fmt.Sprintf("/v1/cart/items/%s?quantity=1", itemID), suite.token(suite.buyer), nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	remaining := response["data"].(map[string]interface{})["cart"].(map[string]interface{})
	suite.EqualValues(2, remaining["items"].([]interface{})[0].(map[string]interface{})["quantity"])

	w, response = suite.do("DELETE", fmt.Sprintf("/v1/cart/items/%s", itemID), suite.token(suite.buyer), nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Nil(response["data"].(map[string]interface{})["cart"])
}

func (suite *APITestSuite) TestCheckoutAmountMismatch() {
	suite.addToCart(suite.buyer, 1)

	w, response := suite.checkoutCart(suite.buyer, 999)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("3000", errorCode(response))
}

func (suite *APITestSuite) TestCheckoutOtherUsersOrder() {
	cart := suite.addToCart(suite.buyer, 1)

	w, response := suite.do("POST", fmt.Sprintf("/v1/orders/%s/checkout", cart["id"]), suite.token(uuid.New()), gin.H{
		"amount": 1000,
		"method": gin.H{"type": "Card", "provider": "stripe", "token": "tok_visa"},
	})
	suite.Equal(http.StatusForbidden, w.Code)
	suite.Equal("4000", errorCode(response))
}

func (suite *APITestSuite) TestExternalPaymentByBoxOffice() {
	cart := suite.addToCart(suite.buyer, 1)
	body := gin.H{
		"amount": 1000,
		"method": gin.H{"type": "External", "reference": "cash-drawer-7"},
	}

	w, _ := suite.do("POST", fmt.Sprintf("/v1/orders/%s/checkout", cart["id"]), suite.token(suite.buyer), body)
	suite.Equal(http.StatusForbidden, w.Code)

	w, _ = suite.do("POST", fmt.Sprintf("/v1/orders/%s/checkout", cart["id"]), suite.token(uuid.New(), utils.ScopeExternalPayment), body)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Len(suite.listTickets(suite.buyer), 1)
}

func (suite *APITestSuite) TestRedeemAtTheDoor() {
	suite.addToCart(suite.buyer, 1)
	w, _ := suite.checkoutCart(suite.buyer, 1000)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	ticketID := suite.listTickets(suite.buyer)[0].(map[string]interface{})["id"]

	w, response := suite.do("GET", fmt.Sprintf("/v1/tickets/%s", ticketID), suite.token(suite.buyer), nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	key := response["data"].(map[string]interface{})["redeem_key"]
	suite.Require().NotEmpty(key)

	redeemPath := fmt.Sprintf("/v1/tickets/%s/redeem", ticketID)
	w, response = suite.do("POST", redeemPath, suite.token(suite.buyer), gin.H{"redeem_key": key})
	suite.Equal(http.StatusForbidden, w.Code)
	suite.Equal("FORBIDDEN", response["error"].(map[string]interface{})["code"])

	door := suite.token(uuid.New(), utils.ScopeRedeemTicket)
	w, response = suite.do("POST", redeemPath, door, gin.H{"redeem_key": "wrong"})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Equal(string(services.RedeemTicketInvalid), errorCode(response))

	w, response = suite.do("POST", redeemPath, door, gin.H{"redeem_key": key})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(string(services.RedeemSuccess), response["data"].(map[string]interface{})["result"])

	w, response = suite.do("POST", redeemPath, door, gin.H{"redeem_key": key})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Equal(string(services.RedeemAlreadyRedeemed), errorCode(response))
}

func (suite *APITestSuite) TestGlobeeIPNIsQueued() {
	req, _ := http.NewRequest("POST", "/v1/ipns/globee", bytes.NewBufferString(`{"id":"ipn-9","status":"paid"}`))
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	id, err := uuid.Parse(response["data"].(map[string]interface{})["id"].(string))
	suite.Require().NoError(err)

	action, err := suite.store.FindDomainAction(suite.ctx, id)
	suite.Require().NoError(err)
	suite.Equal(models.DomainActionTypePaymentProviderIPN, action.ActionType)
	suite.Equal(models.DomainActionStatusPending, action.Status)
	suite.Equal(5, action.MaxAttemptCount)

	req, _ = http.NewRequest("POST", "/v1/ipns/globee", bytes.NewBufferString("status=paid"))
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestErrorMessagesAreLocalized() {
	req, _ := http.NewRequest("GET", "/v1/cart", nil)
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9")
	req.Header.Set("Authorization", "Bearer "+suite.token(suite.buyer))
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusNotFound, w.Code)
	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	message := response["error"].(map[string]interface{})["message"].(string)
	suite.Equal(i18n.T("zh_TW", i18n.ErrorKey(2000)), message)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
