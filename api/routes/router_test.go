package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoplane/shoplane-backend/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:         "test",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Admin: config.AdminConfig{Token: "sesame"},
		Gateway: config.GatewayConfig{
			WebhookSecret: "whsec-test",
		},
	}
}

func newTestRouter() http.Handler {
	return NewRouter(RouterParams{Config: testConfig()})
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := rec.Header().Get("X-Shoplane-Env"); env != "test" {
		t.Fatalf("unexpected env header %q", env)
	}
}

func TestRouterUserSurfaceRequiresIdentity(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity header, got %d", rec.Code)
	}
}

func TestRouterAdminSurfaceRequiresToken(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/finance/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin token, got %d", rec.Code)
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
