package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// Order is the aggregate root of the fulfillment lifecycle. Status changes go
// through the order state machine only; cancelled orders are retained for
// audit and never hard-deleted.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'awaiting_payment'"`
	SubtotalCents     int               `gorm:"column:subtotal_cents;not null"`
	DeliveryCostCents int               `gorm:"column:delivery_cost_cents;not null;default:0"`
	DiscountCents     int               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents        int               `gorm:"column:total_cents;not null"`
	PromoCode         *string           `gorm:"column:promo_code"`
	DeliveryMethod    string            `gorm:"column:delivery_method;not null"`
	ContactName       string            `gorm:"column:contact_name;not null"`
	ContactEmail      string            `gorm:"column:contact_email;not null"`
	ContactPhone      string            `gorm:"column:contact_phone"`
	DeliveryAddress   string            `gorm:"column:delivery_address"`
	DeliveryPostcode  string            `gorm:"column:delivery_postcode"`
	ExpiresAt         *time.Time        `gorm:"column:expires_at"`
	PaidAt            *time.Time        `gorm:"column:paid_at"`
	CanceledAt        *time.Time        `gorm:"column:canceled_at"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID"`
	Payments          []Payment         `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
