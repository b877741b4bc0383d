package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/config"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

func TestAmountRoundTrip(t *testing.T) {
	t.Parallel()

	amount := NewAmount(123456, "EUR")
	if amount.Value != "1234.56" {
		t.Fatalf("unexpected value %q", amount.Value)
	}
	cents, err := amount.Cents()
	if err != nil {
		t.Fatalf("cents: %v", err)
	}
	if cents != 123456 {
		t.Fatalf("expected 123456, got %d", cents)
	}

	if _, err := (Amount{Value: "10.001", Currency: "EUR"}).Cents(); err == nil {
		t.Fatal("expected sub-cent precision to be rejected")
	}
	if _, err := (Amount{Value: "abc", Currency: "EUR"}).Cents(); err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestCreatePayment(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "shop-1" || pass != "secret" {
			t.Errorf("missing basic auth")
		}
		if got := r.Header.Get("Idempotence-Key"); got != orderID.String() {
			t.Errorf("unexpected idempotence key %q", got)
		}

		var body struct {
			Amount   Amount   `json:"amount"`
			Metadata Metadata `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Amount.Value != "50.00" {
			t.Errorf("unexpected amount %q", body.Amount.Value)
		}
		if body.Metadata.OrderID != orderID.String() {
			t.Errorf("unexpected metadata order id %q", body.Metadata.OrderID)
		}

		_ = json.NewEncoder(w).Encode(Payment{
			ID:     "pay-123",
			Status: StatusPending,
			Amount: body.Amount,
			Confirmation: Confirmation{
				Type: "redirect",
				URL:  "https://pay.example/redirect/pay-123",
			},
			Metadata: body.Metadata,
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	payment, err := client.CreatePayment(context.Background(), CreatePaymentRequest{
		AmountCents: 5000,
		Currency:    "EUR",
		Description: "order payment",
		OrderID:     orderID,
		ReturnURL:   "https://shop.example/return",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.ID != "pay-123" || payment.Status != StatusPending {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if payment.Confirmation.URL == "" {
		t.Fatal("expected confirmation url")
	}
}

func TestGetPayment(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/payments/pay-9" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Payment{ID: "pay-9", Status: StatusSucceeded})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	payment, err := client.GetPayment(context.Background(), "pay-9")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.Status != StatusSucceeded {
		t.Fatalf("unexpected status %q", payment.Status)
	}
}

func TestGatewayErrorsAreCoded(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"internal"}`, http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetPayment(context.Background(), "pay-1")
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGatewayError {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateRefund(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/refunds" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Idempotence-Key") == "" {
			t.Error("expected idempotence key")
		}
		_ = json.NewEncoder(w).Encode(Refund{
			ID:        "ref-5",
			Status:    StatusSucceeded,
			PaymentID: "pay-5",
			Amount:    NewAmount(700, "EUR"),
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	refund, err := client.CreateRefund(context.Background(), CreateRefundRequest{
		PaymentID:   "pay-5",
		AmountCents: 700,
		Currency:    "EUR",
		OrderID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("create refund: %v", err)
	}
	if refund.ID != "ref-5" || refund.PaymentID != "pay-5" {
		t.Fatalf("unexpected refund %+v", refund)
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(config.GatewayConfig{
		BaseURL:        baseURL,
		ShopID:         "shop-1",
		SecretKey:      "secret",
		RequestTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}
