package promo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// Quote is the evaluated effect of a promo code on an order subtotal.
type Quote struct {
	Code          string
	DiscountCents int
}

// Service evaluates and redeems promo codes. Validation never burns a use;
// Redeem is called only when a payment for the carrying order is confirmed.
type Service interface {
	Validate(ctx context.Context, code string, subtotalCents int) (*Quote, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string) (bool, error)
	Create(ctx context.Context, input CreatePromoInput) (*models.PromoCode, error)
	List(ctx context.Context, limit, offset int) ([]models.PromoCode, error)
}

// CreatePromoInput carries the admin-facing fields for a new code.
type CreatePromoInput struct {
	Code             string                  `json:"code" validate:"required,min=3,max=32"`
	DiscountType     enums.PromoDiscountType `json:"discount_type" validate:"required"`
	Value            int                     `json:"value" validate:"required,gt=0"`
	MaxDiscountCents *int                    `json:"max_discount_cents" validate:"omitempty,gt=0"`
	MinOrderCents    int                     `json:"min_order_cents" validate:"gte=0"`
	UsageLimit       *int                    `json:"usage_limit" validate:"omitempty,gt=0"`
	ValidFrom        *time.Time              `json:"valid_from"`
	ValidUntil       *time.Time              `json:"valid_until"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a promo service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Validate(ctx context.Context, code string, subtotalCents int) (*Quote, error) {
	row, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code not found")
		}
		return nil, err
	}

	now := s.now()
	switch {
	case !row.IsActive:
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code is inactive")
	case row.ValidFrom != nil && now.Before(*row.ValidFrom):
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code is not active yet")
	case row.ValidUntil != nil && now.After(*row.ValidUntil):
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code has expired")
	case row.UsageLimit != nil && row.UsageCount >= *row.UsageLimit:
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code usage limit reached")
	case subtotalCents < row.MinOrderCents:
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "order subtotal below promo minimum").
			WithDetails(map[string]any{"min_order_cents": row.MinOrderCents})
	}

	return &Quote{
		Code:          row.Code,
		DiscountCents: discountFor(row, subtotalCents),
	}, nil
}

// discountFor computes the discount in integer cents. Percentage math runs
// through decimal so e.g. 15% of 1999 truncates predictably instead of
// drifting through float64.
func discountFor(row *models.PromoCode, subtotalCents int) int {
	var discount int
	switch row.DiscountType {
	case enums.PromoDiscountTypePercentage:
		pct := decimal.NewFromInt(int64(row.Value)).Div(decimal.NewFromInt(100))
		discount = int(decimal.NewFromInt(int64(subtotalCents)).Mul(pct).IntPart())
	case enums.PromoDiscountTypeFixed:
		discount = row.Value
	}
	if row.MaxDiscountCents != nil && discount > *row.MaxDiscountCents {
		discount = *row.MaxDiscountCents
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Redeem burns one use inside the payment-confirmation transaction. A false
// return means the limit filled up between checkout and payment; callers
// treat that as non-fatal and keep the order's quoted discount.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for promo redemption")
	}
	return s.repo.WithTx(tx).Redeem(ctx, code)
}

func (s *service) Create(ctx context.Context, input CreatePromoInput) (*models.PromoCode, error) {
	if !input.DiscountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid discount type %q", input.DiscountType))
	}
	if input.DiscountType == enums.PromoDiscountTypePercentage && input.Value > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && input.ValidUntil.Before(*input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_until precedes valid_from")
	}

	row := &models.PromoCode{
		Code:             input.Code,
		DiscountType:     input.DiscountType,
		Value:            input.Value,
		MaxDiscountCents: input.MaxDiscountCents,
		MinOrderCents:    input.MinOrderCents,
		UsageLimit:       input.UsageLimit,
		ValidFrom:        input.ValidFrom,
		ValidUntil:       input.ValidUntil,
		IsActive:         true,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) List(ctx context.Context, limit, offset int) ([]models.PromoCode, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}
