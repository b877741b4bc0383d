package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/api/responses"
	"github.com/shoplane/shoplane-backend/api/validators"
	stocksvc "github.com/shoplane/shoplane-backend/internal/stock"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
)

type stockAdjustRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// AdminStockAdjust applies an inbound or outbound stock movement. This is
// the only write path that changes available+reserved.
func AdminStockAdjust(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skuID, err := skuIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockAdjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sku, err := svc.Adjust(r.Context(), skuID, payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSKUResponse(sku))
	}
}

// AdminStockGet returns one SKU's counters.
func AdminStockGet(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skuID, err := skuIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sku, err := svc.Get(r.Context(), skuID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSKUResponse(sku))
	}
}

// AdminStockList pages through SKUs with their counters.
func AdminStockList(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		skus, err := svc.List(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]skuResponse, 0, len(skus))
		for i := range skus {
			out = append(out, newSKUResponse(&skus[i]))
		}
		responses.WriteSuccess(w, map[string]any{"skus": out})
	}
}

func skuIDParam(r *http.Request) (uuid.UUID, error) {
	skuID, err := uuid.Parse(chi.URLParam(r, "skuId"))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sku id")
	}
	return skuID, nil
}

type skuResponse struct {
	SKUID         uuid.UUID `json:"sku_id"`
	Title         string    `json:"title"`
	PriceCents    int       `json:"price_cents"`
	DiscountCents int       `json:"discount_cents"`
	AvailableQty  int       `json:"available_qty"`
	ReservedQty   int       `json:"reserved_qty"`
	WeightGrams   int       `json:"weight_grams"`
}

func newSKUResponse(sku *models.SKU) skuResponse {
	if sku == nil {
		return skuResponse{}
	}
	return skuResponse{
		SKUID:         sku.ID,
		Title:         sku.Title,
		PriceCents:    sku.PriceCents,
		DiscountCents: sku.DiscountCents,
		AvailableQty:  sku.AvailableQty,
		ReservedQty:   sku.ReservedQty,
		WeightGrams:   sku.WeightGrams,
	}
}
