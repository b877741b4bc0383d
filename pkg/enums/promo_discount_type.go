package enums

import "fmt"

// PromoDiscountType selects how a promo code computes its discount.
type PromoDiscountType string

const (
	PromoDiscountTypePercentage PromoDiscountType = "percentage"
	PromoDiscountTypeFixed      PromoDiscountType = "fixed"
)

var validPromoDiscountTypes = []PromoDiscountType{
	PromoDiscountTypePercentage,
	PromoDiscountTypeFixed,
}

// IsValid reports whether the value is a known PromoDiscountType.
func (p PromoDiscountType) IsValid() bool {
	for _, candidate := range validPromoDiscountTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePromoDiscountType converts raw input into a PromoDiscountType.
func ParsePromoDiscountType(value string) (PromoDiscountType, error) {
	for _, candidate := range validPromoDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promo discount type %q", value)
}
