package finance

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// Repository manages persistence for the finance ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, txn *models.FinanceTransaction) error
	// AdvanceHead atomically moves the balance head by delta and returns the
	// new balance. The single-row update serializes concurrent appenders.
	AdvanceHead(ctx context.Context, delta int) (int, error)
	Head(ctx context.Context) (int, error)
	HasEntry(ctx context.Context, orderID uuid.UUID, txnType enums.FinanceTransactionType) (bool, error)
	SumByOrder(ctx context.Context, orderID uuid.UUID, txnTypes []enums.FinanceTransactionType) (int, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FinanceTransaction, error)
	List(ctx context.Context, limit, offset int) ([]models.FinanceTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a finance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, txn *models.FinanceTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) AdvanceHead(ctx context.Context, delta int) (int, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE finance_balances
		SET balance_cents = balance_cents + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, delta)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "advance ledger head")
	}
	if res.RowsAffected == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "ledger head row missing")
	}
	return r.Head(ctx)
}

func (r *repository) Head(ctx context.Context) (int, error) {
	var head models.FinanceBalance
	if err := r.db.WithContext(ctx).First(&head, "id = 1").Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger head")
	}
	return head.BalanceCents, nil
}

func (r *repository) HasEntry(ctx context.Context, orderID uuid.UUID, txnType enums.FinanceTransactionType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FinanceTransaction{}).
		Where("order_id = ? AND type = ?", orderID, txnType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) SumByOrder(ctx context.Context, orderID uuid.UUID, txnTypes []enums.FinanceTransactionType) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).Model(&models.FinanceTransaction{}).
		Select("SUM(amount_cents)").
		Where("order_id = ? AND type IN ?", orderID, txnTypes).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FinanceTransaction, error) {
	var rows []models.FinanceTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]models.FinanceTransaction, error) {
	var rows []models.FinanceTransaction
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}
