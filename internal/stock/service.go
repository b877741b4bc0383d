package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// ReservationRequest asks for qty units of a SKU to be held for an order.
type ReservationRequest struct {
	SKUID uuid.UUID
	Qty   int
}

// Service moves stock between the available and reserved counters. All
// counter updates are single conditional statements so two concurrent buyers
// can never drive a counter below zero.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error
	ReserveAll(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error
	Finalize(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error
	Adjust(ctx context.Context, skuID uuid.UUID, delta int) (*models.SKU, error)
	Get(ctx context.Context, skuID uuid.UUID) (*models.SKU, error)
	List(ctx context.Context, limit, offset int) ([]models.SKU, error)
}

type service struct {
	db   *gorm.DB
	repo Repository
}

// NewService wires a stock service with the provided database handle and repository.
func NewService(db *gorm.DB, repo Repository) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &service{db: db, repo: repo}, nil
}

// Reserve moves qty units from available to reserved. The WHERE guard makes
// the check and the decrement a single atomic statement; zero rows affected
// means another buyer got there first.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE skus
		SET available_qty = available_qty - ?,
			reserved_qty = reserved_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_qty >= ?
	`, qty, qty, skuID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		var available int
		lookup := tx.WithContext(ctx).Raw(`SELECT available_qty FROM skus WHERE id = ?`, skuID).Scan(&available)
		if lookup.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, lookup.Error, "read stock counters")
		}
		if lookup.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sku not found").
				WithDetails(map[string]any{"sku_id": skuID.String()})
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("insufficient stock: only %d units available", available)).
			WithDetails(map[string]any{"sku_id": skuID.String(), "requested": qty, "available": available})
	}
	return nil
}

// ReserveAll places every hold in order and stops at the first line that
// cannot be filled, returning its error. Callers run it inside a transaction
// so the abort rolls the partial holds back into the available pool.
func (s *service) ReserveAll(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive").
				WithDetails(map[string]any{"sku_id": req.SKUID.String()})
		}
	}

	for _, req := range requests {
		if err := s.Reserve(ctx, tx, req.SKUID, req.Qty); err != nil {
			return err
		}
	}
	return nil
}

// Finalize consumes a reservation once its order is paid. The units leave
// the reserved counter without returning to the available pool.
func (s *service) Finalize(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock finalize")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE skus
		SET reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ?
	`, qty, skuID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "finalize stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved quantity below finalize amount").
			WithDetails(map[string]any{"sku_id": skuID.String(), "qty": qty})
	}
	return nil
}

// Release returns a reservation to the available pool when an order is
// canceled or expires.
func (s *service) Release(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE skus
		SET available_qty = available_qty + ?,
			reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ?
	`, qty, qty, skuID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	return nil
}

// Adjust applies an admin correction to the available counter. Negative
// deltas are bounded so the counter never goes below zero.
func (s *service) Adjust(ctx context.Context, skuID uuid.UUID, delta int) (*models.SKU, error) {
	if delta == 0 {
		return s.repo.GetByID(ctx, skuID)
	}

	res := s.db.WithContext(ctx).Exec(`
		UPDATE skus
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_qty + ? >= 0
	`, delta, skuID, delta)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust stock")
	}
	if res.RowsAffected == 0 {
		if _, err := s.repo.GetByID(ctx, skuID); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "adjustment would drive stock negative").
			WithDetails(map[string]any{"sku_id": skuID.String(), "delta": delta})
	}
	return s.repo.GetByID(ctx, skuID)
}

func (s *service) Get(ctx context.Context, skuID uuid.UUID) (*models.SKU, error) {
	return s.repo.GetByID(ctx, skuID)
}

func (s *service) List(ctx context.Context, limit, offset int) ([]models.SKU, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}
