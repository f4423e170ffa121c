// internal/services/transfer_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/metrics"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

type TransferTickets interface {
	TicketStore
	TransferStore
}

type TransferService struct {
	store     TransferTickets
	inventory *InventoryService
	wallets   *WalletService
	clock     clock.Clock
	log       *logrus.Entry
}

// TransferGrant is what a sender hands to the receiver. Token is the signed
// form of the other fields.
type TransferGrant struct {
	SenderUserID uuid.UUID `json:"sender_user_id"`
	TransferKey  uuid.UUID `json:"transfer_key"`
	NumTickets   int       `json:"num_tickets"`
	IssuedAt     time.Time `json:"issued_at"`
	TTLSeconds   int64     `json:"ttl"`
	Token        string    `json:"token"`
}

type AuthorizeTransferRequest struct {
	TicketIDs  []uuid.UUID `json:"ticket_ids" validate:"required,min=1"`
	TTLSeconds int64       `json:"validity_period_in_seconds" validate:"min=0"`
}

type ReceiveTransferRequest struct {
	Token string `json:"token" validate:"required"`
}

func NewTransferService(store TransferTickets, inventory *InventoryService, wallets *WalletService, clk clock.Clock) *TransferService {
	return &TransferService{
		store:     store,
		inventory: inventory,
		wallets:   wallets,
		clock:     clk,
		log:       logrus.WithField("service", "transfer"),
	}
}

// Authorize issues a single-use transfer authorization for tickets the
// sender owns. If any ticket is not owned and Purchased nothing is changed.
func (s *TransferService) Authorize(ctx context.Context, senderUserID uuid.UUID, ticketIDs []uuid.UUID, ttlSeconds int64) (*TransferGrant, error) {
	grant, err := s.authorize(ctx, senderUserID, ticketIDs, ttlSeconds)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.TransfersTotal.WithLabelValues("authorize", outcome).Inc()
	return grant, err
}

func (s *TransferService) authorize(ctx context.Context, senderUserID uuid.UUID, ticketIDs []uuid.UUID, ttlSeconds int64) (*TransferGrant, error) {
	if len(ticketIDs) == 0 {
		return nil, apperr.New(apperr.CodeEmptyRequest, "no tickets provided")
	}
	if ttlSeconds < 0 {
		return nil, apperr.Invalid("validity period cannot be negative")
	}
	seen := make(map[uuid.UUID]bool, len(ticketIDs))
	for _, id := range ticketIDs {
		if seen[id] {
			return nil, apperr.Invalid("ticket " + id.String() + " listed more than once")
		}
		seen[id] = true
	}

	wallet, err := s.wallets.DefaultWalletForUser(ctx, senderUserID)
	if err != nil {
		return nil, err
	}

	var auth *models.TransferAuthorization
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		tickets, err := s.store.LockTickets(ctx, ticketIDs)
		if err != nil {
			return err
		}
		if len(tickets) != len(ticketIDs) {
			return apperr.New(apperr.CodeNotOwner, "one or more tickets do not exist")
		}
		for _, t := range tickets {
			if t.WalletID != wallet.ID || t.Status != models.TicketInstanceStatusPurchased {
				return apperr.New(apperr.CodeNotOwner, fmt.Sprintf("ticket %s is not owned by the sender", t.ID))
			}
		}

		now := s.clock.Now()
		key := uuid.New()
		expiry := now.Add(time.Duration(ttlSeconds) * time.Second)
		ids := make(pq.StringArray, 0, len(tickets))
		for i := range tickets {
			tickets[i].TransferKey = &key
			tickets[i].TransferExpiryDate = &expiry
			ids = append(ids, tickets[i].ID.String())
		}
		if err := s.store.SaveTickets(ctx, tickets); err != nil {
			return err
		}

		auth = &models.TransferAuthorization{
			SenderUserID:   senderUserID,
			SenderWalletID: wallet.ID,
			TransferKey:    key,
			TicketIDs:      ids,
			NumTickets:     len(tickets),
			IssuedAt:       now,
			TTLSeconds:     ttlSeconds,
		}
		return s.store.CreateTransferAuthorization(ctx, auth)
	})
	if err != nil {
		return nil, err
	}

	token, err := utils.SignTransferToken(utils.TransferClaims{
		SenderUserID: senderUserID.String(),
		TransferKey:  auth.TransferKey.String(),
		NumTickets:   auth.NumTickets,
		IssuedAt:     auth.IssuedAt.Unix(),
		TTLSeconds:   auth.TTLSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transfer token: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"sender_user_id": senderUserID,
		"transfer_key":   auth.TransferKey,
		"tickets":        auth.NumTickets,
	}).Info("Issued transfer authorization")

	return &TransferGrant{
		SenderUserID: senderUserID,
		TransferKey:  auth.TransferKey,
		NumTickets:   auth.NumTickets,
		IssuedAt:     auth.IssuedAt,
		TTLSeconds:   auth.TTLSeconds,
		Token:        token,
	}, nil
}

// ReceiveToken verifies a signed grant and moves its tickets into the
// receiver's default wallet.
func (s *TransferService) ReceiveToken(ctx context.Context, token string, receiverUserID uuid.UUID) ([]models.TicketInstance, error) {
	claims, err := utils.ParseTransferToken(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, "invalid transfer token", err)
	}
	senderID, err := uuid.Parse(claims.SenderUserID)
	if err != nil {
		return nil, apperr.Invalid("invalid transfer token sender")
	}
	key, err := uuid.Parse(claims.TransferKey)
	if err != nil {
		return nil, apperr.Invalid("invalid transfer key")
	}

	receiver, err := s.wallets.DefaultWalletForUser(ctx, receiverUserID)
	if err != nil {
		return nil, err
	}

	return s.Receive(ctx, TransferGrant{
		SenderUserID: senderID,
		TransferKey:  key,
		NumTickets:   claims.NumTickets,
		IssuedAt:     time.Unix(claims.IssuedAt, 0).UTC(),
		TTLSeconds:   claims.TTLSeconds,
	}, receiver.ID)
}

// Receive reassigns every ticket bound to the grant's authorization to
// receiverWalletID and consumes the authorization.
func (s *TransferService) Receive(ctx context.Context, grant TransferGrant, receiverWalletID uuid.UUID) ([]models.TicketInstance, error) {
	tickets, err := s.receive(ctx, grant, receiverWalletID)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.TransfersTotal.WithLabelValues("receive", outcome).Inc()
	return tickets, err
}

func (s *TransferService) receive(ctx context.Context, grant TransferGrant, receiverWalletID uuid.UUID) ([]models.TicketInstance, error) {
	sender, err := s.wallets.DefaultWalletForUser(ctx, grant.SenderUserID)
	if err != nil {
		return nil, err
	}

	var received []models.TicketInstance
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		auth, err := s.store.LockTransferAuthorizationByKey(ctx, grant.TransferKey)
		if err != nil {
			return err
		}
		if auth.IsConsumed() {
			return apperr.New(apperr.CodeAuthorizationConsumed, "transfer authorization has already been used")
		}
		if auth.SenderUserID != grant.SenderUserID || auth.SenderWalletID != sender.ID {
			return apperr.New(apperr.CodeNotOwner, "transfer authorization was not issued by this sender")
		}

		now := s.clock.Now()
		if auth.IsExpired(now) {
			return apperr.New(apperr.CodeAuthorizationExpired, "transfer authorization has expired")
		}

		ids := make([]uuid.UUID, 0, len(auth.TicketIDs))
		for _, raw := range auth.TicketIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return apperr.Invalid("corrupt ticket id in transfer authorization")
			}
			ids = append(ids, id)
		}
		tickets, err := s.store.LockTickets(ctx, ids)
		if err != nil {
			return err
		}

		var bound []models.TicketInstance
		for _, t := range tickets {
			if t.TransferKey != nil && *t.TransferKey == auth.TransferKey {
				bound = append(bound, t)
			}
		}
		if grant.NumTickets != auth.NumTickets || len(bound) != auth.NumTickets {
			return apperr.New(apperr.CodeCountMismatch, fmt.Sprintf(
				"transfer covers %d tickets but %d were presented and %d are still bound",
				auth.NumTickets, grant.NumTickets, len(bound)))
		}

		for i := range bound {
			t := &bound[i]
			if t.WalletID != sender.ID || t.Status != models.TicketInstanceStatusPurchased {
				return apperr.New(apperr.CodeNotOwner, fmt.Sprintf("ticket %s is no longer held by the sender", t.ID))
			}
			if t.TransferExpiryDate != nil && now.After(*t.TransferExpiryDate) {
				return apperr.New(apperr.CodeAuthorizationExpired, "transfer authorization has expired")
			}
			t.WalletID = receiverWalletID
			t.TransferKey = nil
			t.TransferExpiryDate = nil
		}
		if err := s.store.SaveTickets(ctx, bound); err != nil {
			return err
		}

		auth.ConsumedAt = &now
		auth.ReceiverWalletID = &receiverWalletID
		if err := s.store.SaveTransferAuthorization(ctx, auth); err != nil {
			return err
		}
		received = bound
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transfer_key":       grant.TransferKey,
		"receiver_wallet_id": receiverWalletID,
		"tickets":            len(received),
	}).Info("Transfer received")
	return received, nil
}

// Release returns a purchased ticket to Available, cancelling any pending
// transfer of it.
func (s *TransferService) Release(ctx context.Context, ticketID uuid.UUID) (*models.TicketInstance, error) {
	return s.inventory.ReleasePurchased(ctx, ticketID)
}

// WasTransferred reports whether the ticket was ever received through a
// transfer authorization.
func (s *TransferService) WasTransferred(ctx context.Context, ticketID uuid.UUID) (bool, error) {
	return s.store.HasConsumedTransferForTicket(ctx, ticketID)
}
