package enums

import "fmt"

// FinanceTransactionType maps to the finance_transaction_type enum in Postgres.
type FinanceTransactionType string

const (
	FinanceTransactionTypeSale       FinanceTransactionType = "sale"
	FinanceTransactionTypeRefund     FinanceTransactionType = "refund"
	FinanceTransactionTypeDeposit    FinanceTransactionType = "deposit"
	FinanceTransactionTypeWithdrawal FinanceTransactionType = "withdrawal"
	FinanceTransactionTypeExpense    FinanceTransactionType = "expense"
	FinanceTransactionTypeAdjustment FinanceTransactionType = "adjustment"
)

var validFinanceTransactionTypes = []FinanceTransactionType{
	FinanceTransactionTypeSale,
	FinanceTransactionTypeRefund,
	FinanceTransactionTypeDeposit,
	FinanceTransactionTypeWithdrawal,
	FinanceTransactionTypeExpense,
	FinanceTransactionTypeAdjustment,
}

// RequiresOrder reports whether entries of this type must reference an order.
func (t FinanceTransactionType) RequiresOrder() bool {
	return t == FinanceTransactionTypeSale || t == FinanceTransactionTypeRefund
}

// IsValid reports whether the value matches the canonical finance enum.
func (t FinanceTransactionType) IsValid() bool {
	for _, candidate := range validFinanceTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseFinanceTransactionType converts raw input into FinanceTransactionType.
func ParseFinanceTransactionType(value string) (FinanceTransactionType, error) {
	for _, candidate := range validFinanceTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid finance transaction type %q", value)
}
