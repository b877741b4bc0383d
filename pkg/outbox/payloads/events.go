package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// OrderCreatedEvent signals that checkout produced a new order awaiting payment.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	TotalCents int       `json:"total_cents"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// OrderPaidEvent is emitted when a payment for an order is confirmed.
type OrderPaidEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	PaymentExternalID string    `json:"payment_external_id"`
	AmountCents       int       `json:"amount_cents"`
	PaidAt            time.Time `json:"paid_at"`
}

// OrderCanceledEvent is emitted whenever an order is canceled, by the buyer,
// an admin, or a failed payment.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	CanceledAt time.Time         `json:"canceled_at"`
	Reason     string            `json:"reason,omitempty"`
}

// OrderExpiredEvent reports that the reaper canceled an unpaid order past its TTL.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// OrderRefundedEvent is emitted when a refund settles against a paid order.
type OrderRefundedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	RefundExternalID string    `json:"refund_external_id"`
	AmountCents      int       `json:"amount_cents"`
}

// PaymentFailedEvent reports a terminal gateway failure for a payment attempt.
type PaymentFailedEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	PaymentExternalID string    `json:"payment_external_id"`
	Reason            string    `json:"reason,omitempty"`
}

// OrderFulfilledEvent surfaces fulfillment milestones (shipped, delivered).
type OrderFulfilledEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	Status  enums.OrderStatus `json:"status"`
}
