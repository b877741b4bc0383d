package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is the provider's money shape: a decimal string plus currency.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// NewAmount renders integer cents as the provider's two-decimal string.
func NewAmount(cents int, currency string) Amount {
	value := decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100))
	return Amount{Value: value.StringFixed(2), Currency: currency}
}

// Cents converts the decimal string back to integer cents. Sub-cent
// precision is rejected rather than rounded.
func (a Amount) Cents() (int, error) {
	value, err := decimal.NewFromString(a.Value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", a.Value, err)
	}
	cents := value.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", a.Value)
	}
	return int(cents.IntPart()), nil
}
