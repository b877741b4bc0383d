package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/api/middleware"
	"github.com/shoplane/shoplane-backend/api/responses"
	"github.com/shoplane/shoplane-backend/api/validators"
	orderssvc "github.com/shoplane/shoplane-backend/internal/orders"
	paymentssvc "github.com/shoplane/shoplane-backend/internal/payments"
	"github.com/shoplane/shoplane-backend/pkg/logger"
)

// PaymentResolve polls the gateway for the order's pending payment and
// applies the verified status. Buyers reach for this when the redirect came
// back before the webhook did.
func PaymentResolve(payments paymentssvc.Service, orders orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Ownership check before touching the gateway.
		if _, err := orders.GetForUser(r.Context(), orderID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := payments.Resolve(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type refundRequest struct {
	AmountCents int `json:"amount_cents" validate:"required,gt=0"`
}

type refundResponse struct {
	RefundID    uuid.UUID `json:"refund_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Status      string    `json:"status"`
	AmountCents int       `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// AdminRefund creates a gateway refund against the order's succeeded payment.
func AdminRefund(payments paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := payments.RequestRefund(r.Context(), orderID, payload.AmountCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, refundResponse{
			RefundID:    refund.ID,
			OrderID:     refund.OrderID,
			Status:      string(refund.Status),
			AmountCents: refund.AmountCents,
			CreatedAt:   refund.CreatedAt,
		})
	}
}
