package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// PromoCode is a discount rule. UsageCount only moves forward when a payment
// for an order carrying the code is confirmed; validation alone never burns a
// use.
type PromoCode struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	Code             string                  `gorm:"column:code;uniqueIndex;not null"`
	DiscountType     enums.PromoDiscountType `gorm:"column:discount_type;type:promo_discount_type;not null"`
	Value            int                     `gorm:"column:value;not null"`
	MaxDiscountCents *int                    `gorm:"column:max_discount_cents"`
	MinOrderCents    int                     `gorm:"column:min_order_cents;not null;default:0"`
	UsageLimit       *int                    `gorm:"column:usage_limit"`
	UsageCount       int                     `gorm:"column:usage_count;not null;default:0"`
	ValidFrom        *time.Time              `gorm:"column:valid_from"`
	ValidUntil       *time.Time              `gorm:"column:valid_until"`
	IsActive         bool                    `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
