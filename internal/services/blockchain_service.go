// internal/services/blockchain_service.go
package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/config"
)

// TokenTransfer moves token ids of one asset between two wallets.
type TokenTransfer struct {
	SenderSecretKey    string
	SenderPublicKey    string
	AssetID            string
	TokenIDs           []uint64
	RecipientPublicKey string
}

// TokenTransferer settles ticket ownership on the ledger and returns the
// ledger's transaction hash.
type TokenTransferer interface {
	TransferTokens(ctx context.Context, transfer TokenTransfer) (string, error)
}

type BlockchainService struct {
	config     config.BlockchainConfig
	httpClient *http.Client
	requestID  atomic.Int64
	log        *logrus.Entry
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("ledger rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type transferTokensParams struct {
	AssetID            string   `json:"asset_id"`
	TokenIDs           []uint64 `json:"token_ids"`
	SenderPublicKey    string   `json:"sender_public_key"`
	SenderSecretKey    string   `json:"sender_secret_key"`
	RecipientPublicKey string   `json:"recipient_public_key"`
}

type transferTokensResult struct {
	TxHash string `json:"tx_hash"`
}

// NewBlockchainService talks JSON-RPC to the ledger node at cfg.RPC_URL.
// Without an RPC URL transfers are simulated and only logged.
func NewBlockchainService(cfg config.BlockchainConfig) *BlockchainService {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BlockchainService{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		log: logrus.WithFields(logrus.Fields{
			"service": "blockchain",
			"network": cfg.Network,
		}),
	}
}

func (s *BlockchainService) TransferTokens(ctx context.Context, transfer TokenTransfer) (string, error) {
	if transfer.AssetID == "" {
		return "", fmt.Errorf("asset id is required")
	}
	if len(transfer.TokenIDs) == 0 {
		return "", fmt.Errorf("no token ids to transfer")
	}

	if s.config.RPC_URL == "" {
		hash := s.generateHash(map[string]interface{}{
			"type":      "transfer_tokens",
			"asset_id":  transfer.AssetID,
			"token_ids": transfer.TokenIDs,
			"from":      transfer.SenderPublicKey,
			"to":        transfer.RecipientPublicKey,
		})
		s.log.WithFields(logrus.Fields{
			"asset_id": transfer.AssetID,
			"tokens":   len(transfer.TokenIDs),
			"tx_hash":  hash,
		}).Info("Simulated ledger transfer")
		return hash, nil
	}

	var result transferTokensResult
	err := s.call(ctx, "transfer_tokens", transferTokensParams{
		AssetID:            transfer.AssetID,
		TokenIDs:           transfer.TokenIDs,
		SenderPublicKey:    transfer.SenderPublicKey,
		SenderSecretKey:    transfer.SenderSecretKey,
		RecipientPublicKey: transfer.RecipientPublicKey,
	}, &result)
	if err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"asset_id": transfer.AssetID,
		"tokens":   len(transfer.TokenIDs),
		"tx_hash":  result.TxHash,
	}).Info("Ledger transfer submitted")
	return result.TxHash, nil
}

func (s *BlockchainService) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.RPC_URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger returned HTTP %d for %s", resp.StatusCode, method)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

func (s *BlockchainService) generateHash(data map[string]interface{}) string {
	// Convert data to JSON string for consistent hashing
	jsonStr := fmt.Sprintf("%+v", data)
	hash := sha256.Sum256([]byte(jsonStr))
	return hex.EncodeToString(hash[:])
}
