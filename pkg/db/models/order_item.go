package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is an immutable snapshot of a cart line at checkout time. Unit
// price is frozen here so later SKU price changes never affect the order.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	SKUID          uuid.UUID `gorm:"column:sku_id;type:uuid;not null"`
	Title          string    `gorm:"column:title;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TotalCents is the line total.
func (i OrderItem) TotalCents() int {
	return i.UnitPriceCents * i.Qty
}
