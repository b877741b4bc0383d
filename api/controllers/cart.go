package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/api/middleware"
	"github.com/shoplane/shoplane-backend/api/responses"
	"github.com/shoplane/shoplane-backend/api/validators"
	cartsvc "github.com/shoplane/shoplane-backend/internal/cart"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
)

// CartFetch returns the caller's active cart, creating an empty one on first
// touch.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		cart, err := svc.GetOrCreateActive(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

type cartItemRequest struct {
	SKUID uuid.UUID `json:"sku_id" validate:"required"`
	Qty   int       `json:"qty" validate:"gte=0,lte=100"`
}

// CartSetItem adds a line or replaces its quantity; quantity zero removes it.
func CartSetItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.SetItem(r.Context(), userID, payload.SKUID, payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartRemoveItem drops a single line from the active cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		skuID, err := uuid.Parse(chi.URLParam(r, "skuId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid sku id"))
			return
		}

		cart, err := svc.RemoveItem(r.Context(), userID, skuID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartClear empties the active cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		if err := svc.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

type cartResponse struct {
	CartID        uuid.UUID          `json:"cart_id"`
	Status        string             `json:"status"`
	Items         []cartItemResponse `json:"items"`
	SubtotalCents int                `json:"subtotal_cents"`
}

type cartItemResponse struct {
	SKUID          uuid.UUID `json:"sku_id"`
	Title          string    `json:"title,omitempty"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	if cart == nil {
		return cartResponse{}
	}
	items := make([]cartItemResponse, 0, len(cart.Items))
	subtotal := 0
	for _, item := range cart.Items {
		line := cartItemResponse{
			SKUID: item.SKUID,
			Qty:   item.Qty,
		}
		if item.SKU != nil {
			line.Title = item.SKU.Title
			line.UnitPriceCents = item.SKU.UnitPriceCents()
			line.TotalCents = line.UnitPriceCents * item.Qty
		}
		subtotal += line.TotalCents
		items = append(items, line)
	}
	return cartResponse{
		CartID:        cart.ID,
		Status:        string(cart.Status),
		Items:         items,
		SubtotalCents: subtotal,
	}
}
