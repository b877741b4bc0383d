package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// Repository manages persistence for SKUs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sku *models.SKU) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SKU, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.SKU, error)
	List(ctx context.Context, limit, offset int) ([]models.SKU, error)
	Save(ctx context.Context, sku *models.SKU) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a SKU repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sku *models.SKU) error {
	return r.db.WithContext(ctx).Create(sku).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.SKU, error) {
	var sku models.SKU
	err := r.db.WithContext(ctx).First(&sku, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sku not found")
		}
		return nil, err
	}
	return &sku, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.SKU, error) {
	var skus []models.SKU
	if len(ids) == 0 {
		return skus, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&skus).Error
	return skus, err
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]models.SKU, error) {
	var skus []models.SKU
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&skus).Error
	return skus, err
}

func (r *repository) Save(ctx context.Context, sku *models.SKU) error {
	return r.db.WithContext(ctx).Save(sku).Error
}
