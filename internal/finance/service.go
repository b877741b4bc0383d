package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// AppendInput captures the immutable data a ledger entry requires.
// AmountCents is signed: credits positive, debits negative.
type AppendInput struct {
	Type        enums.FinanceTransactionType `json:"type"`
	AmountCents int                          `json:"amount_cents"`
	OrderID     *uuid.UUID                   `json:"order_id"`
	AdminID     *uuid.UUID                   `json:"admin_id"`
	Note        *string                      `json:"note"`
}

// Service appends to the money ledger and answers balance queries. Entries
// are immutable; corrections are new adjustment entries.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.FinanceTransaction, error)
	HasEntry(ctx context.Context, orderID uuid.UUID, txnType enums.FinanceTransactionType) (bool, error)
	Balance(ctx context.Context) (int, error)
	RefundedCents(ctx context.Context, orderID uuid.UUID) (int, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FinanceTransaction, error)
	List(ctx context.Context, limit, offset int) ([]models.FinanceTransaction, error)
}

type service struct {
	repo Repository
}

// NewService wires a finance service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("finance repository required")
	}
	return &service{repo: repo}, nil
}

// Append validates the entry, moves the balance head, and inserts the row
// with the resulting running balance, all inside the supplied transaction.
// The head row's update lock serializes concurrent appends so running
// balances never interleave.
func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.FinanceTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for ledger append")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	if input.Type == enums.FinanceTransactionTypeRefund {
		if err := s.checkRefundBound(ctx, repo, input); err != nil {
			return nil, err
		}
	}

	newBalance, err := repo.AdvanceHead(ctx, input.AmountCents)
	if err != nil {
		return nil, err
	}

	txn := &models.FinanceTransaction{
		Type:              input.Type,
		AmountCents:       input.AmountCents,
		BalanceAfterCents: newBalance,
		OrderID:           input.OrderID,
		AdminID:           input.AdminID,
		Note:              input.Note,
	}
	if err := repo.Insert(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func validateInput(input AppendInput) error {
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.Type.RequiresOrder() && (input.OrderID == nil || *input.OrderID == uuid.Nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("transaction type %q requires an order", input.Type))
	}

	switch input.Type {
	case enums.FinanceTransactionTypeSale, enums.FinanceTransactionTypeDeposit:
		if input.AmountCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "credit entries must have a positive amount")
		}
	case enums.FinanceTransactionTypeRefund, enums.FinanceTransactionTypeWithdrawal, enums.FinanceTransactionTypeExpense:
		if input.AmountCents >= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "debit entries must have a negative amount")
		}
	case enums.FinanceTransactionTypeAdjustment:
		if input.AmountCents == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "adjustment amount cannot be zero")
		}
	}
	return nil
}

// checkRefundBound rejects a refund that would exceed what the order has
// actually collected, net of prior refunds.
func (s *service) checkRefundBound(ctx context.Context, repo Repository, input AppendInput) error {
	collected, err := repo.SumByOrder(ctx, *input.OrderID, []enums.FinanceTransactionType{
		enums.FinanceTransactionTypeSale,
		enums.FinanceTransactionTypeRefund,
	})
	if err != nil {
		return err
	}
	if -input.AmountCents > collected {
		return pkgerrors.New(pkgerrors.CodeRefundExceeds, "refund exceeds remaining order balance").
			WithDetails(map[string]any{
				"order_id":        input.OrderID.String(),
				"remaining_cents": collected,
				"refund_cents":    -input.AmountCents,
			})
	}
	return nil
}

func (s *service) HasEntry(ctx context.Context, orderID uuid.UUID, txnType enums.FinanceTransactionType) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !txnType.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", txnType))
	}
	return s.repo.HasEntry(ctx, orderID, txnType)
}

func (s *service) Balance(ctx context.Context) (int, error) {
	return s.repo.Head(ctx)
}

// RefundedCents returns the magnitude already refunded against an order.
func (s *service) RefundedCents(ctx context.Context, orderID uuid.UUID) (int, error) {
	refunded, err := s.repo.SumByOrder(ctx, orderID, []enums.FinanceTransactionType{enums.FinanceTransactionTypeRefund})
	if err != nil {
		return 0, err
	}
	return -refunded, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FinanceTransaction, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *service) List(ctx context.Context, limit, offset int) ([]models.FinanceTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}
