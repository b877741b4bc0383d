package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// Payment is one attempt to collect an order's total. Retries create new rows;
// a row leaves pending exactly once. ExternalID is the gateway payment id and
// doubles as the webhook idempotency key.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	ExternalID       string              `gorm:"column:external_id;uniqueIndex;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	AmountCents      int                 `gorm:"column:amount_cents;not null"`
	PaymentURL       string              `gorm:"column:payment_url"`
	ProviderResponse json.RawMessage     `gorm:"column:provider_response;type:jsonb"`
	FailureReason    *string             `gorm:"column:failure_reason"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
