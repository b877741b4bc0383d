package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/config"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

const (
	// Provider payment statuses.
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"

	responseBodyReadLimit int64 = 4096
)

var errCredentialsRequired = errors.New("gateway shop id and secret key are required")

// Metadata carries the order reference the provider echoes back in webhooks.
type Metadata struct {
	OrderID string `json:"order_id"`
}

// Payment is the provider's payment object.
type Payment struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	Amount       Amount       `json:"amount"`
	Confirmation Confirmation `json:"confirmation"`
	Metadata     Metadata     `json:"metadata"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Confirmation holds the redirect the buyer completes payment at.
type Confirmation struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url,omitempty"`
	URL       string `json:"confirmation_url,omitempty"`
}

// Refund is the provider's refund object.
type Refund struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	Amount    Amount `json:"amount"`
}

// CreatePaymentRequest describes a new provider payment.
type CreatePaymentRequest struct {
	AmountCents int
	Currency    string
	Description string
	OrderID     uuid.UUID
	ReturnURL   string
}

// CreateRefundRequest describes a new provider refund.
type CreateRefundRequest struct {
	PaymentID   string
	AmountCents int
	Currency    string
	OrderID     uuid.UUID
}

// Client speaks the payment provider's REST API with basic-auth shop
// credentials and idempotence keys on mutating calls.
type Client struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured provider base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the payment provider client from configuration.
func NewClient(cfg config.GatewayConfig, opts ...Option) (*Client, error) {
	shopID := strings.TrimSpace(cfg.ShopID)
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if shopID == "" || secretKey == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		shopID:     shopID,
		secretKey:  secretKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		return nil, errors.New("gateway base url is required")
	}
	return client, nil
}

// CreatePayment registers a payment and returns the confirmation redirect.
// The order id doubles as the idempotence key so checkout retries cannot
// create duplicate provider payments.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "gateway client not configured")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	body := map[string]any{
		"amount":      NewAmount(req.AmountCents, req.Currency),
		"description": req.Description,
		"capture":     true,
		"confirmation": map[string]any{
			"type":       "redirect",
			"return_url": req.ReturnURL,
		},
		"metadata": Metadata{OrderID: req.OrderID.String()},
	}

	var payment Payment
	if err := c.do(ctx, http.MethodPost, "payments", req.OrderID.String(), body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment fetches the provider's current view of a payment.
func (c *Client) GetPayment(ctx context.Context, externalID string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "gateway client not configured")
	}
	trimmed := strings.TrimSpace(externalID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var payment Payment
	if err := c.do(ctx, http.MethodGet, "payments/"+url.PathEscape(trimmed), "", nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreateRefund asks the provider to return money against a payment.
func (c *Client) CreateRefund(ctx context.Context, req CreateRefundRequest) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "gateway client not configured")
	}
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	body := map[string]any{
		"payment_id": req.PaymentID,
		"amount":     NewAmount(req.AmountCents, req.Currency),
		"metadata":   Metadata{OrderID: req.OrderID.String()},
	}

	idempotenceKey := fmt.Sprintf("refund-%s-%d", req.PaymentID, req.AmountCents)
	var refund Refund
	if err := c.do(ctx, http.MethodPost, "refunds", idempotenceKey, body, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// GetRefund fetches the provider's current view of a refund.
func (c *Client) GetRefund(ctx context.Context, externalID string) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "gateway client not configured")
	}
	trimmed := strings.TrimSpace(externalID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}

	var refund Refund
	if err := c.do(ctx, http.MethodGet, "refunds/"+url.PathEscape(trimmed), "", nil, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotenceKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayError, err, "marshal gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayError, err, "build gateway request")
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayError, err, "execute gateway request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(
			pkgerrors.CodeGatewayError,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"gateway request failed",
		)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayError, err, "decode gateway response")
		}
	}
	return nil
}
