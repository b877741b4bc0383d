package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// Cart is a user's pre-checkout basket. Checkout converts it atomically; a
// converted cart is never reused.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;uniqueIndex:idx_carts_user_active,where:status = 'active';not null"`
	Status    enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:active"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;uniqueIndex:idx_cart_items_cart_sku;not null"`
	SKUID     uuid.UUID `gorm:"column:sku_id;type:uuid;uniqueIndex:idx_cart_items_cart_sku;not null"`
	Qty       int       `gorm:"column:qty;not null"`
	SKU       *SKU      `gorm:"foreignKey:SKUID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
