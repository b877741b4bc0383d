package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/api/middleware"
	"github.com/shoplane/shoplane-backend/api/responses"
	"github.com/shoplane/shoplane-backend/api/validators"
	checkoutsvc "github.com/shoplane/shoplane-backend/internal/checkout"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
)

// Checkout converts the caller's active cart into an order awaiting payment.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, checkoutsvc.CheckoutInput{
			DeliveryMethod:   payload.DeliveryMethod,
			ContactName:      payload.ContactName,
			ContactEmail:     payload.ContactEmail,
			ContactPhone:     payload.ContactPhone,
			DeliveryAddress:  payload.DeliveryAddress,
			DeliveryPostcode: payload.DeliveryPostcode,
			PromoCode:        payload.PromoCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutRequest struct {
	DeliveryMethod   string `json:"delivery_method" validate:"required,oneof=pickup courier"`
	ContactName      string `json:"contact_name" validate:"required,max=200"`
	ContactEmail     string `json:"contact_email" validate:"required,email"`
	ContactPhone     string `json:"contact_phone" validate:"omitempty,max=32"`
	DeliveryAddress  string `json:"delivery_address" validate:"omitempty,max=500"`
	DeliveryPostcode string `json:"delivery_postcode" validate:"omitempty,max=16"`
	PromoCode        string `json:"promo_code" validate:"omitempty,max=64"`
}

type checkoutResponse struct {
	OrderID           uuid.UUID  `json:"order_id"`
	Status            string     `json:"status"`
	SubtotalCents     int        `json:"subtotal_cents"`
	DiscountCents     int        `json:"discount_cents"`
	DeliveryCostCents int        `json:"delivery_cost_cents"`
	TotalCents        int        `json:"total_cents"`
	PromoCode         *string    `json:"promo_code,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	PaymentID         uuid.UUID  `json:"payment_id"`
	ConfirmationURL   string     `json:"confirmation_url"`
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	if result == nil || result.Order == nil {
		return checkoutResponse{}
	}
	resp := checkoutResponse{
		OrderID:           result.Order.ID,
		Status:            string(result.Order.Status),
		SubtotalCents:     result.Order.SubtotalCents,
		DiscountCents:     result.Order.DiscountCents,
		DeliveryCostCents: result.Order.DeliveryCostCents,
		TotalCents:        result.Order.TotalCents,
		PromoCode:         result.Order.PromoCode,
		ExpiresAt:         result.Order.ExpiresAt,
		ConfirmationURL:   result.ConfirmationURL,
	}
	if result.Payment != nil {
		resp.PaymentID = result.Payment.ID
	}
	return resp
}
