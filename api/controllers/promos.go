package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/api/responses"
	"github.com/shoplane/shoplane-backend/api/validators"
	promosvc "github.com/shoplane/shoplane-backend/internal/promo"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/logger"
)

type promoPreviewRequest struct {
	Code          string `json:"code" validate:"required,max=64"`
	SubtotalCents int    `json:"subtotal_cents" validate:"required,gt=0"`
}

type promoPreviewResponse struct {
	Code          string `json:"code"`
	DiscountCents int    `json:"discount_cents"`
}

// PromoPreview evaluates a code against a subtotal without burning a use.
func PromoPreview(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload promoPreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Validate(r.Context(), payload.Code, payload.SubtotalCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, promoPreviewResponse{
			Code:          quote.Code,
			DiscountCents: quote.DiscountCents,
		})
	}
}

// AdminPromoCreate registers a new discount code.
func AdminPromoCreate(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload promosvc.CreatePromoInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPromoResponse(promo))
	}
}

// AdminPromoList pages through registered codes.
func AdminPromoList(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		promos, err := svc.List(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]promoResponse, 0, len(promos))
		for i := range promos {
			out = append(out, newPromoResponse(&promos[i]))
		}
		responses.WriteSuccess(w, map[string]any{"promos": out})
	}
}

type promoResponse struct {
	PromoID          uuid.UUID  `json:"promo_id"`
	Code             string     `json:"code"`
	DiscountType     string     `json:"discount_type"`
	Value            int        `json:"value"`
	MaxDiscountCents *int       `json:"max_discount_cents,omitempty"`
	MinOrderCents    int        `json:"min_order_cents"`
	UsageLimit       *int       `json:"usage_limit,omitempty"`
	UsageCount       int        `json:"usage_count"`
	ValidFrom        *time.Time `json:"valid_from,omitempty"`
	ValidUntil       *time.Time `json:"valid_until,omitempty"`
	IsActive         bool       `json:"is_active"`
}

func newPromoResponse(promo *models.PromoCode) promoResponse {
	if promo == nil {
		return promoResponse{}
	}
	return promoResponse{
		PromoID:          promo.ID,
		Code:             promo.Code,
		DiscountType:     string(promo.DiscountType),
		Value:            promo.Value,
		MaxDiscountCents: promo.MaxDiscountCents,
		MinOrderCents:    promo.MinOrderCents,
		UsageLimit:       promo.UsageLimit,
		UsageCount:       promo.UsageCount,
		ValidFrom:        promo.ValidFrom,
		ValidUntil:       promo.ValidUntil,
		IsActive:         promo.IsActive,
	}
}
