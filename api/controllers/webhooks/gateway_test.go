package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shoplane/shoplane-backend/internal/payments"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/security"
)

const testSecret = "whsec-test"

type stubHandler struct {
	notifications []*payments.Notification
	err           error
}

func (s *stubHandler) HandleNotification(_ context.Context, n *payments.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func paymentSucceededBody(t *testing.T) []byte {
	t.Helper()
	payload := map[string]any{
		"type":  "notification",
		"event": payments.EventPaymentSucceeded,
		"object": map[string]any{
			"id":     "pay-1",
			"status": "succeeded",
			"amount": map[string]string{"value": "45.00", "currency": "RUB"},
			"metadata": map[string]string{
				"order_id": "3b7ff1f9-54ea-4b34-8b0a-7a2f7be7f3a1",
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

func TestGatewayWebhookAcceptsSignedDelivery(t *testing.T) {
	handler := &stubHandler{}
	body := paymentSucceededBody(t)

	allowlist, err := security.NewIPAllowlist("203.0.113.0/24")
	if err != nil {
		t.Fatalf("allowlist: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(string(body)))
	req.RemoteAddr = "198.51.100.7:443"
	req.Header.Set(signatureHeader, security.SignPayload(testSecret, body))

	rec := httptest.NewRecorder()
	GatewayWebhook(handler, allowlist, testSecret, nil, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(handler.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(handler.notifications))
	}
	if handler.notifications[0].Event != payments.EventPaymentSucceeded {
		t.Fatalf("unexpected event %q", handler.notifications[0].Event)
	}
}

func TestGatewayWebhookAcceptsAllowlistedIP(t *testing.T) {
	handler := &stubHandler{}
	body := paymentSucceededBody(t)

	allowlist, err := security.NewIPAllowlist("203.0.113.0/24")
	if err != nil {
		t.Fatalf("allowlist: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(string(body)))
	req.RemoteAddr = "203.0.113.9:52110"
	// No signature header; the source address alone vouches for it.

	rec := httptest.NewRecorder()
	GatewayWebhook(handler, allowlist, testSecret, nil, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(handler.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(handler.notifications))
	}
}

func TestGatewayWebhookRejectsUntrustedSource(t *testing.T) {
	handler := &stubHandler{}
	body := paymentSucceededBody(t)

	allowlist, err := security.NewIPAllowlist("203.0.113.0/24")
	if err != nil {
		t.Fatalf("allowlist: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(string(body)))
	req.RemoteAddr = "198.51.100.7:443"
	req.Header.Set(signatureHeader, "sha256=deadbeef")

	rec := httptest.NewRecorder()
	GatewayWebhook(handler, allowlist, testSecret, nil, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(handler.notifications) != 0 {
		t.Fatal("untrusted delivery must not reach the service")
	}
}

func TestGatewayWebhookRejectsTamperedBody(t *testing.T) {
	handler := &stubHandler{}
	body := paymentSucceededBody(t)
	signature := security.SignPayload(testSecret, body)

	tampered := strings.Replace(string(body), "45.00", "1.00", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(tampered))
	req.RemoteAddr = "198.51.100.7:443"
	req.Header.Set(signatureHeader, signature)

	rec := httptest.NewRecorder()
	GatewayWebhook(handler, nil, testSecret, nil, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGatewayWebhookRejectsMalformedJSON(t *testing.T) {
	handler := &stubHandler{}
	body := []byte(`{"type":`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(string(body)))
	req.RemoteAddr = "198.51.100.7:443"
	req.Header.Set(signatureHeader, security.SignPayload(testSecret, body))

	rec := httptest.NewRecorder()
	GatewayWebhook(handler, nil, testSecret, nil, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGatewayWebhookSurfacesProcessingErrors(t *testing.T) {
	handler := &stubHandler{err: pkgerrors.New(pkgerrors.CodeDependency, "redis down")}
	body := paymentSucceededBody(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(string(body)))
	req.RemoteAddr = "198.51.100.7:443"
	req.Header.Set(signatureHeader, security.SignPayload(testSecret, body))

	rec := httptest.NewRecorder()
	GatewayWebhook(handler, nil, testSecret, nil, nil)(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 so the gateway retries, got %d", rec.Code)
	}
}
