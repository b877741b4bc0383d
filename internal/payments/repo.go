package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// Repository manages payment and refund rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetPaymentByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	// GetPendingByOrder returns the newest pending payment for the order.
	GetPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, updates map[string]any) error
	// FailPendingByOrder marks every pending payment of the order failed.
	// Used by the expiry reaper; already-terminal rows are untouched.
	FailPendingByOrder(ctx context.Context, orderID uuid.UUID, reason string) (int64, error)
	CreateRefund(ctx context.Context, refund *models.Refund) error
	GetRefundByExternalID(ctx context.Context, externalID string) (*models.Refund, error)
	UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus, updates map[string]any) error
	SumSucceededRefunds(ctx context.Context, orderID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetPaymentByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, "external_id = ?", externalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) GetPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pending payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, updates map[string]any) error {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = status
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) FailPendingByOrder(ctx context.Context, orderID uuid.UUID, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateRefund(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) GetRefundByExternalID(ctx context.Context, externalID string) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).First(&refund, "external_id = ?", externalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, err
	}
	return &refund, nil
}

func (r *repository) UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus, updates map[string]any) error {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = status
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) SumSucceededRefunds(ctx context.Context, orderID uuid.UUID) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Select("SUM(amount_cents)").
		Where("order_id = ? AND status = ?", orderID, enums.RefundStatusSucceeded).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
