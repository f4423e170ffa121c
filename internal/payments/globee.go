// internal/payments/globee.go
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const ProviderGlobee = "globee"

// GlobeeClient talks to the Globee payment API.
// Live: https://globee.com/payment-api/v1/, test: https://test.globee.com/payment-api/v1/
type GlobeeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGlobeeClient(apiKey, baseURL string, httpClient *http.Client) *GlobeeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &GlobeeClient{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient}
}

type GlobeeCustomer struct {
	Name  *string `json:"name,omitempty"`
	Email string  `json:"email"`
}

type GlobeePaymentRequest struct {
	// Total in the invoice currency, as a decimal string.
	Total                string         `json:"total"`
	Currency             *string        `json:"currency,omitempty"`
	CustomPaymentID      *string        `json:"custom_payment_id,omitempty"`
	CallbackData         *string        `json:"callback_data,omitempty"`
	Customer             GlobeeCustomer `json:"customer"`
	SuccessURL           *string        `json:"success_url,omitempty"`
	CancelURL            *string        `json:"cancel_url,omitempty"`
	IPNURL               *string        `json:"ipn_url,omitempty"`
	NotificationEmail    *string        `json:"notification_email,omitempty"`
	ConfirmationSpeed    *string        `json:"confirmation_speed,omitempty"`
	CustomStoreReference *string        `json:"custom_store_reference,omitempty"`
}

type GlobeePaymentResponse struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	AdjustedTotal *float64 `json:"adjusted_total,omitempty"`
	RedirectURL   string   `json:"redirect_url"`
	ExpiresAt     string   `json:"expires_at,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

type GlobeeValidationError struct {
	Type    string   `json:"type"`
	Extra   []string `json:"extra"`
	Field   string   `json:"field"`
	Message string   `json:"message"`
}

type GlobeeValidationErrors []GlobeeValidationError

func (e GlobeeValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, v := range e {
		messages = append(messages, v.Field+": "+v.Message)
	}
	return "one or more errors occurred: " + strings.Join(messages, "; ")
}

type globeeResponse[T any] struct {
	Success bool                   `json:"success"`
	Data    *T                     `json:"data"`
	Errors  GlobeeValidationErrors `json:"errors"`
}

// GlobeeIPN is the body Globee posts to the IPN url.
type GlobeeIPN struct {
	ID                   string          `json:"id"`
	Status               *string         `json:"status"`
	Total                *string         `json:"total"`
	AdjustedTotal        *float64        `json:"adjusted_total"`
	Currency             *string         `json:"currency"`
	CustomPaymentID      *string         `json:"custom_payment_id"`
	CustomStoreReference *string         `json:"custom_store_reference"`
	CallbackData         *string         `json:"callback_data"`
	Customer             *GlobeeCustomer `json:"customer"`
	RedirectURL          *string         `json:"redirect_url"`
	SuccessURL           *string         `json:"success_url"`
	CancelURL            *string         `json:"cancel_url"`
	IPNURL               *string         `json:"ipn_url"`
	NotificationEmail    *string         `json:"notification_email"`
	ConfirmationSpeed    *string         `json:"confirmation_speed"`
	ExpiresAt            *string         `json:"expires_at"`
	CreatedAt            *string         `json:"created_at"`
}

func (c *GlobeeClient) CreatePaymentRequest(ctx context.Context, request GlobeePaymentRequest) (*GlobeePaymentResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"payment-request", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-AUTH-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("globee request failed: %w", err)
	}
	defer resp.Body.Close()

	var value globeeResponse[GlobeePaymentResponse]
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to decode globee response (status %d): %w", resp.StatusCode, err)
	}

	if value.Success {
		if value.Data == nil {
			return nil, fmt.Errorf("API did not return a response that was expected")
		}
		return value.Data, nil
	}
	if len(value.Errors) > 0 {
		return nil, value.Errors
	}
	return nil, fmt.Errorf("API did not return a response that was expected (status %d)", resp.StatusCode)
}

type GlobeeURLs struct {
	NotifyURL  string
	SuccessURL string
	CancelURL  string
}

// GlobeeProcessor redirects buyers to a Globee hosted invoice.
type GlobeeProcessor struct {
	client *GlobeeClient
	urls   GlobeeURLs
}

func NewGlobeeProcessor(client *GlobeeClient, urls GlobeeURLs) *GlobeeProcessor {
	return &GlobeeProcessor{client: client, urls: urls}
}

func (p *GlobeeProcessor) Behavior() Behavior {
	return p
}

func (p *GlobeeProcessor) Name() string {
	return ProviderGlobee
}

func (p *GlobeeProcessor) CreatePaymentRequest(ctx context.Context, req PaymentPageRequest) (*RedirectInfo, error) {
	currency := strings.ToUpper(req.Currency)
	request := GlobeePaymentRequest{
		Total:           FormatCents(req.AmountInCents),
		Currency:        &currency,
		CustomPaymentID: &req.CustomPaymentID,
		Customer:        GlobeeCustomer{Email: req.Email},
		SuccessURL:      optional(p.urls.SuccessURL),
		CancelURL:       optional(p.urls.CancelURL),
		IPNURL:          optional(p.urls.NotifyURL),
	}

	resp, err := p.client.CreatePaymentRequest(ctx, request)
	if err != nil {
		return nil, NewProcessorError(err.Error(), err)
	}
	return &RedirectInfo{ID: resp.ID, RedirectURL: resp.RedirectURL}, nil
}

// Globee has no refund API; refunds are handled by an operator.
func (p *GlobeeProcessor) Refund(ctx context.Context, authToken string) (*ChargeAuthResult, error) {
	return nil, NewProcessorError("globee does not support refunds", nil)
}

func (p *GlobeeProcessor) PartialRefund(ctx context.Context, authToken string, amountInCents int64) (*ChargeAuthResult, error) {
	return nil, NewProcessorError("globee does not support refunds", nil)
}

// FormatCents renders cents as a decimal amount, e.g. 12345 -> "123.45".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
