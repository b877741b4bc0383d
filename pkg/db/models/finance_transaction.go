package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// FinanceTransaction is one append-only row of the money ledger.
// BalanceAfterCents carries the running total; rows are never updated or
// deleted.
type FinanceTransaction struct {
	ID                int64                        `gorm:"column:id;primaryKey;autoIncrement"`
	Type              enums.FinanceTransactionType `gorm:"column:type;type:finance_transaction_type;not null"`
	AmountCents       int                          `gorm:"column:amount_cents;not null"`
	BalanceAfterCents int                          `gorm:"column:balance_after_cents;not null"`
	OrderID           *uuid.UUID                   `gorm:"column:order_id;type:uuid"`
	AdminID           *uuid.UUID                   `gorm:"column:admin_id;type:uuid"`
	Note              *string                      `gorm:"column:note"`
	CreatedAt         time.Time                    `gorm:"column:created_at;autoCreateTime"`
}

// FinanceBalance is the single-row ledger head. Appends increment the balance
// with an atomic conditional update; the row lock serializes concurrent
// writers so balance_after values never interleave.
type FinanceBalance struct {
	ID           int       `gorm:"column:id;primaryKey"`
	BalanceCents int       `gorm:"column:balance_cents;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
