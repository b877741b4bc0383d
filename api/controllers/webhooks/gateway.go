package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shoplane/shoplane-backend/api/responses"
	"github.com/shoplane/shoplane-backend/internal/payments"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/metrics"
	"github.com/shoplane/shoplane-backend/pkg/security"
)

const signatureHeader = "X-Signature"

type notificationHandler interface {
	HandleNotification(ctx context.Context, notification *payments.Notification) error
}

// GatewayWebhook receives payment gateway notifications. A delivery is
// trusted when it originates from the gateway's published ranges or carries
// a valid HMAC signature over the raw body; everything else is rejected
// before the payload is even parsed.
func GatewayWebhook(svc notificationHandler, allowlist *security.IPAllowlist, webhookSecret string, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !trustedSource(r, allowlist, webhookSecret, body) {
			if wm != nil {
				wm.IncRejected("unauthorized")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook source not trusted"))
			return
		}

		var notification payments.Notification
		if err := json.Unmarshal(body, &notification); err != nil {
			if wm != nil {
				wm.IncRejected("malformed")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification payload"))
			return
		}

		start := time.Now()
		if err := svc.HandleNotification(ctx, &notification); err != nil {
			if wm != nil {
				wm.IncRejected("processing_error")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if wm != nil {
			wm.IncProcessed(notification.Event)
			wm.ObserveDuration(notification.Event, time.Since(start))
		}

		responses.WriteSuccess(w, nil)
	}
}

func trustedSource(r *http.Request, allowlist *security.IPAllowlist, secret string, body []byte) bool {
	if allowlist != nil && allowlist.Contains(r.RemoteAddr) {
		return true
	}
	if secret == "" {
		return false
	}
	return security.VerifySignature(secret, r.Header.Get(signatureHeader), body) == nil
}
