package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/api/middleware"
	"github.com/shoplane/shoplane-backend/api/responses"
	"github.com/shoplane/shoplane-backend/api/validators"
	orderssvc "github.com/shoplane/shoplane-backend/internal/orders"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/pagination"
)

// OrderList returns the caller's orders, newest first, cursor-paginated.
func OrderList(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByUser(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders := make([]orderResponse, 0, len(list.Orders))
		for i := range list.Orders {
			orders = append(orders, newOrderResponse(&list.Orders[i]))
		}

		responses.WriteSuccess(w, orderListResponse{
			Orders:     orders,
			NextCursor: list.NextCursor,
		})
	}
}

// OrderDetail returns one of the caller's orders with items and payments.
func OrderDetail(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetForUser(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderCancel lets a buyer abandon an order that is still awaiting payment.
func OrderCancel(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CancelForUser(r.Context(), orderID, userID, "cancelled by buyer")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type advanceOrderRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminOrderAdvance moves a paid order along the fulfillment chain.
func AdminOrderAdvance(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload advanceOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": payload.Status}))
			return
		}

		order, err := svc.Advance(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminOrderDetail returns any order regardless of owner.
func AdminOrderDetail(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	return orderID, nil
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type orderResponse struct {
	OrderID           uuid.UUID           `json:"order_id"`
	Status            string              `json:"status"`
	SubtotalCents     int                 `json:"subtotal_cents"`
	DiscountCents     int                 `json:"discount_cents"`
	DeliveryCostCents int                 `json:"delivery_cost_cents"`
	TotalCents        int                 `json:"total_cents"`
	PromoCode         *string             `json:"promo_code,omitempty"`
	DeliveryMethod    string              `json:"delivery_method"`
	ExpiresAt         *time.Time          `json:"expires_at,omitempty"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
	CanceledAt        *time.Time          `json:"canceled_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	Items             []orderItemResponse `json:"items,omitempty"`
	Payments          []paymentResponse   `json:"payments,omitempty"`
}

type orderItemResponse struct {
	SKUID          uuid.UUID `json:"sku_id"`
	Title          string    `json:"title"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

type paymentResponse struct {
	PaymentID     uuid.UUID `json:"payment_id"`
	Status        string    `json:"status"`
	AmountCents   int       `json:"amount_cents"`
	PaymentURL    string    `json:"payment_url,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			SKUID:          item.SKUID,
			Title:          item.Title,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents(),
		})
	}
	payments := make([]paymentResponse, 0, len(order.Payments))
	for _, payment := range order.Payments {
		payments = append(payments, paymentResponse{
			PaymentID:     payment.ID,
			Status:        string(payment.Status),
			AmountCents:   payment.AmountCents,
			PaymentURL:    payment.PaymentURL,
			FailureReason: payment.FailureReason,
			CreatedAt:     payment.CreatedAt,
		})
	}
	return orderResponse{
		OrderID:           order.ID,
		Status:            string(order.Status),
		SubtotalCents:     order.SubtotalCents,
		DiscountCents:     order.DiscountCents,
		DeliveryCostCents: order.DeliveryCostCents,
		TotalCents:        order.TotalCents,
		PromoCode:         order.PromoCode,
		DeliveryMethod:    order.DeliveryMethod,
		ExpiresAt:         order.ExpiresAt,
		PaidAt:            order.PaidAt,
		CanceledAt:        order.CanceledAt,
		CreatedAt:         order.CreatedAt,
		Items:             items,
		Payments:          payments,
	}
}
