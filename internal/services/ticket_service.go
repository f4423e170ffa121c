// internal/services/ticket_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/models"
)

type TicketCatalog interface {
	TicketStore
	CatalogStore
}

type TicketService struct {
	store     TicketCatalog
	inventory *InventoryService
	wallets   *WalletService
	transfers *TransferService
	clock     clock.Clock
}

// TicketView is a ticket as shown to its owner.
type TicketView struct {
	ID                 uuid.UUID                   `json:"id"`
	EventID            uuid.UUID                   `json:"event_id"`
	EventName          string                      `json:"event_name"`
	EventStart         time.Time                   `json:"event_start"`
	TicketTypeID       uuid.UUID                   `json:"ticket_type_id"`
	TicketTypeName     string                      `json:"ticket_type_name"`
	TokenID            int64                       `json:"token_id"`
	Status             models.TicketInstanceStatus `json:"status"`
	TransferExpiryDate *time.Time                  `json:"transfer_expiry_date,omitempty"`
	RedeemKey          *string                     `json:"redeem_key,omitempty"`
	WasTransferred     bool                        `json:"was_transferred"`
}

func NewTicketService(store TicketCatalog, inventory *InventoryService, wallets *WalletService, transfers *TransferService, clk clock.Clock) *TicketService {
	return &TicketService{
		store:     store,
		inventory: inventory,
		wallets:   wallets,
		transfers: transfers,
		clock:     clk,
	}
}

// ListForUser returns the tickets held in the user's default wallet.
func (s *TicketService) ListForUser(ctx context.Context, userID uuid.UUID) ([]TicketView, error) {
	wallet, err := s.wallets.DefaultWalletForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.FindTicketsForWallet(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		view, err := s.view(ctx, &tickets[i], false)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// ShowRedeemable returns one of the user's tickets. The redeem key is only
// included once the event's redeem date has been reached.
func (s *TicketService) ShowRedeemable(ctx context.Context, userID, ticketID uuid.UUID) (*TicketView, error) {
	wallet, err := s.wallets.DefaultWalletForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.store.FindTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.WalletID != wallet.ID {
		return nil, apperr.NotFound("ticket")
	}
	return s.view(ctx, ticket, true)
}

func (s *TicketService) Redeem(ctx context.Context, ticketID uuid.UUID, key string) (RedeemResult, error) {
	return s.inventory.Redeem(ctx, ticketID, key)
}

func (s *TicketService) view(ctx context.Context, ticket *models.TicketInstance, withKey bool) (*TicketView, error) {
	ticketType, err := s.store.FindTicketType(ctx, ticket.TicketTypeID)
	if err != nil {
		return nil, err
	}
	event, err := s.store.FindEvent(ctx, ticketType.EventID)
	if err != nil {
		return nil, err
	}
	transferred, err := s.transfers.WasTransferred(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	view := &TicketView{
		ID:                 ticket.ID,
		EventID:            event.ID,
		EventName:          event.Name,
		EventStart:         event.EventStart,
		TicketTypeID:       ticketType.ID,
		TicketTypeName:     ticketType.Name,
		TokenID:            ticket.TokenID,
		Status:             ticket.Status,
		TransferExpiryDate: ticket.TransferExpiryDate,
		WasTransferred:     transferred,
	}
	if withKey && ticket.Status == models.TicketInstanceStatusPurchased && !s.clock.Now().Before(event.RedeemableAt()) {
		view.RedeemKey = ticket.RedeemKey
	}
	return view, nil
}
