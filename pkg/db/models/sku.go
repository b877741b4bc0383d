package models

import (
	"time"

	"github.com/google/uuid"
)

// SKU is the authoritative stock record for a sellable variant. The counter
// pair is mutated only through the stock ledger's conditional updates;
// available+reserved changes only via explicit stock movements.
type SKU struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string    `gorm:"column:title;not null"`
	PriceCents    int       `gorm:"column:price_cents;not null"`
	DiscountCents int       `gorm:"column:discount_cents;not null;default:0"`
	AvailableQty  int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty   int       `gorm:"column:reserved_qty;not null;default:0"`
	WeightGrams   int       `gorm:"column:weight_grams;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// UnitPriceCents is the effective per-unit price after the per-item discount.
func (s SKU) UnitPriceCents() int {
	price := s.PriceCents - s.DiscountCents
	if price < 0 {
		return 0
	}
	return price
}
