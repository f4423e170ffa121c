// internal/services/helpers_test.go
package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/payments"
	"github.com/javajoker/ticketing-backend/internal/repository/memstore"
	"github.com/javajoker/ticketing-backend/internal/services"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx       context.Context
	store     *memstore.Store
	clock     *clock.Manual
	inventory *services.InventoryService
	wallets   *services.WalletService
	orders    *services.OrderService
	checkout  *services.CheckoutService
	transfers *services.TransferService
	tickets   *services.TicketService
	card      *fakeCardProcessor
	hosted    *fakeRedirectProcessor
	ledger    *fakeLedger
	issuer    *models.Wallet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memstore.New(), nil)
}

// newFixtureWithStore lets a test wrap the store the checkout service sees.
func newFixtureWithStore(t *testing.T, store *memstore.Store, checkoutStore services.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewManual(testStart)

	f := &fixture{
		ctx:    ctx,
		store:  store,
		clock:  clk,
		card:   &fakeCardProcessor{},
		hosted: &fakeRedirectProcessor{},
		ledger: &fakeLedger{},
	}
	if checkoutStore == nil {
		checkoutStore = store
	}

	f.inventory = services.NewInventoryService(store, clk)
	f.wallets = services.NewWalletService(store)
	f.orders = services.NewOrderService(store, f.inventory, clk)
	locator := payments.NewStaticLocator(map[string]payments.Processor{
		payments.ProviderStripe: f.card,
		payments.ProviderGlobee: f.hosted,
	})
	f.checkout = services.NewCheckoutService(checkoutStore, f.inventory, f.wallets, locator, f.ledger, clk, "USD")
	f.transfers = services.NewTransferService(store, f.inventory, f.wallets, clk)
	f.tickets = services.NewTicketService(store, f.inventory, f.wallets, f.transfers, clk)

	issuer, err := f.wallets.CreateOrganizationWallet(ctx, uuid.New(), "Issuer")
	require.NoError(t, err)
	f.issuer = issuer
	return f
}

type ticketTypeOpts struct {
	price       int64
	capacity    int64
	holdCode    *string
	schedule    *models.FeeSchedule
	unassigned  bool
	redeemDate  *time.Time
	eventStarts time.Time
}

// ticketType creates an event with one ticket type and mints its capacity
// into the issuer wallet.
func (f *fixture) ticketType(t *testing.T, opts ticketTypeOpts) *models.TicketType {
	t.Helper()
	if opts.eventStarts.IsZero() {
		opts.eventStarts = testStart.Add(7 * 24 * time.Hour)
	}

	event := &models.Event{Name: "Spring Show", EventStart: opts.eventStarts, RedeemDate: opts.redeemDate}
	require.NoError(t, f.store.CreateEvent(f.ctx, event))

	tt := &models.TicketType{EventID: event.ID, Name: "General", PriceInCents: opts.price}
	if opts.schedule != nil {
		require.NoError(t, f.store.CreateFeeSchedule(f.ctx, opts.schedule))
		tt.FeeScheduleID = &opts.schedule.ID
	}
	require.NoError(t, f.store.CreateTicketType(f.ctx, tt))

	asset := &models.Asset{TicketTypeID: tt.ID}
	if !opts.unassigned {
		ledgerID := "asset-" + tt.ID.String()[:8]
		asset.BlockchainAssetID = &ledgerID
	}
	require.NoError(t, f.store.CreateAsset(f.ctx, asset))

	if opts.capacity > 0 {
		_, err := f.inventory.Mint(f.ctx, services.MintRequest{
			AssetID:      asset.ID,
			TicketTypeID: tt.ID,
			WalletID:     f.issuer.ID,
			Quantity:     opts.capacity,
			HoldCode:     opts.holdCode,
		})
		require.NoError(t, err)
	}
	return tt
}

func (f *fixture) addToCart(t *testing.T, userID uuid.UUID, tt *models.TicketType, quantity int64) *models.Order {
	t.Helper()
	cart, err := f.orders.AddItems(f.ctx, userID, []services.CartItemRequest{{TicketTypeID: tt.ID, Quantity: quantity}})
	require.NoError(t, err)
	return cart
}

func (f *fixture) cardCheckout(userID uuid.UUID, order *models.Order) (*services.CheckoutResult, error) {
	return f.checkout.Checkout(f.ctx, services.Actor{UserID: userID}, order.ID, services.CheckoutRequest{
		AmountInCents: order.CalculateTotal(),
		Method: services.CheckoutMethod{
			Type:     services.CheckoutMethodCard,
			Provider: payments.ProviderStripe,
			Token:    "tok_visa",
		},
	})
}

// purchase buys quantity tickets of tt for userID and returns them as held
// in the user's wallet.
func (f *fixture) purchase(t *testing.T, userID uuid.UUID, tt *models.TicketType, quantity int64) []models.TicketInstance {
	t.Helper()
	cart := f.addToCart(t, userID, tt, quantity)
	_, err := f.cardCheckout(userID, cart)
	require.NoError(t, err)

	wallet, err := f.wallets.DefaultWalletForUser(f.ctx, userID)
	require.NoError(t, err)
	held, err := f.store.FindTicketsForOrder(f.ctx, cart.ID)
	require.NoError(t, err)
	for _, ticket := range held {
		require.Equal(t, wallet.ID, ticket.WalletID)
	}
	return held
}

func (f *fixture) statusCounts(t *testing.T, tt *models.TicketType) map[models.TicketInstanceStatus]int64 {
	t.Helper()
	counts, err := f.inventory.Availability(f.ctx, tt.ID)
	require.NoError(t, err)
	return counts
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

// fakeCardProcessor is an auth-then-capture provider.
type fakeCardProcessor struct {
	mu         sync.Mutex
	onCapture  func()
	authErr    error
	captureErr error
	refundErr  error
	repeats    int
	auths      []payments.AuthRequest
	captured   []string
	refunded   []string
}

func (p *fakeCardProcessor) Behavior() payments.Behavior { return p }

func (p *fakeCardProcessor) Name() string { return payments.ProviderStripe }

func (p *fakeCardProcessor) CreateRepeatToken(ctx context.Context, token, description string) (*payments.RepeatChargeToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeats++
	return &payments.RepeatChargeToken{Token: fmt.Sprintf("cus_%d", p.repeats)}, nil
}

func (p *fakeCardProcessor) UpdateRepeatToken(ctx context.Context, repeatToken, token, description string) (*payments.RepeatChargeToken, error) {
	return &payments.RepeatChargeToken{Token: repeatToken, Extra: map[string]interface{}{"card": token}}, nil
}

func (p *fakeCardProcessor) Auth(ctx context.Context, req payments.AuthRequest) (*payments.ChargeAuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authErr != nil {
		return nil, payments.NewProcessorError("card declined", p.authErr)
	}
	p.auths = append(p.auths, req)
	return &payments.ChargeAuthResult{ID: fmt.Sprintf("ch_%d", len(p.auths))}, nil
}

func (p *fakeCardProcessor) CompleteAuthedCharge(ctx context.Context, authToken string) (*payments.ChargeResult, error) {
	if p.onCapture != nil {
		p.onCapture()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureErr != nil {
		return nil, payments.NewProcessorError("capture failed", p.captureErr)
	}
	p.captured = append(p.captured, authToken)
	return &payments.ChargeResult{ID: authToken, Extra: map[string]interface{}{"captured": true}}, nil
}

func (p *fakeCardProcessor) Refund(ctx context.Context, authToken string) (*payments.ChargeAuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return nil, payments.NewProcessorError("refund failed", p.refundErr)
	}
	p.refunded = append(p.refunded, authToken)
	return &payments.ChargeAuthResult{ID: authToken}, nil
}

func (p *fakeCardProcessor) PartialRefund(ctx context.Context, authToken string, amountInCents int64) (*payments.ChargeAuthResult, error) {
	return p.Refund(ctx, authToken)
}

// fakeRedirectProcessor is a hosted payment page provider.
type fakeRedirectProcessor struct {
	mu       sync.Mutex
	err      error
	requests []payments.PaymentPageRequest
}

func (p *fakeRedirectProcessor) Behavior() payments.Behavior { return p }

func (p *fakeRedirectProcessor) Name() string { return payments.ProviderGlobee }

func (p *fakeRedirectProcessor) CreatePaymentRequest(ctx context.Context, req payments.PaymentPageRequest) (*payments.RedirectInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, payments.NewProcessorError("payment request failed", p.err)
	}
	p.requests = append(p.requests, req)
	id := fmt.Sprintf("gb_%d", len(p.requests))
	return &payments.RedirectInfo{ID: id, RedirectURL: "https://pay.example.com/" + id}, nil
}

func (p *fakeRedirectProcessor) Refund(ctx context.Context, authToken string) (*payments.ChargeAuthResult, error) {
	return nil, payments.NewProcessorError("refunds are not supported", nil)
}

func (p *fakeRedirectProcessor) PartialRefund(ctx context.Context, authToken string, amountInCents int64) (*payments.ChargeAuthResult, error) {
	return p.Refund(ctx, authToken)
}

type fakeLedger struct {
	mu        sync.Mutex
	err       error
	transfers []services.TokenTransfer
}

func (l *fakeLedger) TransferTokens(ctx context.Context, transfer services.TokenTransfer) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	l.transfers = append(l.transfers, transfer)
	return fmt.Sprintf("0x%04x", len(l.transfers)), nil
}

func (l *fakeLedger) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.transfers)
}
