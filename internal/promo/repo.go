package promo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// Repository manages persistence for promo codes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, code *models.PromoCode) error
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	List(ctx context.Context, limit, offset int) ([]models.PromoCode, error)
	Save(ctx context.Context, code *models.PromoCode) error
	// Redeem increments usage_count when the limit has headroom. Returns
	// false when the code is exhausted or inactive.
	Redeem(ctx context.Context, code string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a promo repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, code *models.PromoCode) error {
	code.Code = normalizeCode(code.Code)
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var row models.PromoCode
	err := r.db.WithContext(ctx).First(&row, "code = ?", normalizeCode(code)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]models.PromoCode, error) {
	var rows []models.PromoCode
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) Save(ctx context.Context, code *models.PromoCode) error {
	return r.db.WithContext(ctx).Save(code).Error
}

func (r *repository) Redeem(ctx context.Context, code string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE promo_codes
		SET usage_count = usage_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE code = ?
			AND is_active
			AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, normalizeCode(code))
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "redeem promo code")
	}
	return res.RowsAffected > 0, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
