package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// Refund tracks a money return against a succeeded payment. The sum of
// succeeded refund amounts for an order never exceeds the order total.
type Refund struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	PaymentExternalID string             `gorm:"column:payment_external_id;not null"`
	ExternalID        string             `gorm:"column:external_id;uniqueIndex"`
	Status            enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	AmountCents       int                `gorm:"column:amount_cents;not null"`
	ProviderResponse  json.RawMessage    `gorm:"column:provider_response;type:jsonb"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
