package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// The cap keeps a single cart line from dwarfing the reservable stock.
const maxItemQty = 100

// SKUGetter resolves SKUs referenced by cart items.
type SKUGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SKU, error)
}

// Service exposes cart operations for the shopper-facing API and checkout.
type Service interface {
	// GetOrCreateActive returns the user's active cart, creating an empty
	// one when none exists.
	GetOrCreateActive(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	// SetItem adds the SKU to the cart or replaces its quantity. Quantity
	// zero removes the line.
	SetItem(ctx context.Context, userID, skuID uuid.UUID, qty int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, skuID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	// MarkConverted flags the cart as consumed by a checkout. Runs inside
	// the caller's checkout transaction.
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type service struct {
	repo Repository
	skus SKUGetter
}

// NewService wires the cart service.
func NewService(repo Repository, skus SKUGetter) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository is required")
	}
	if skus == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sku getter is required")
	}
	return &service{repo: repo, skus: skus}, nil
}

func (s *service) GetOrCreateActive(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.GetActiveByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}

	fresh := &models.Cart{UserID: userID, Status: enums.CartStatusActive}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *service) SetItem(ctx context.Context, userID, skuID uuid.UUID, qty int) (*models.Cart, error) {
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if qty > maxItemQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds per-item limit").
			WithDetails(map[string]any{"max_qty": maxItemQty})
	}

	cart, err := s.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if qty == 0 {
		if err := s.repo.DeleteItem(ctx, cart.ID, skuID); err != nil {
			return nil, err
		}
		return s.repo.GetActiveByUser(ctx, userID)
	}

	if _, err := s.skus.GetByID(ctx, skuID); err != nil {
		return nil, err
	}

	item := &models.CartItem{CartID: cart.ID, SKUID: skuID, Qty: qty}
	if err := s.repo.UpsertItem(ctx, item); err != nil {
		return nil, err
	}
	return s.repo.GetActiveByUser(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, skuID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, cart.ID, skuID); err != nil {
		return nil, err
	}
	return s.repo.GetActiveByUser(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.GetActiveByUser(ctx, userID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil
		}
		return err
	}
	return s.repo.DeleteItems(ctx, cart.ID)
}

func (s *service) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to convert a cart")
	}
	return s.repo.WithTx(tx).UpdateStatus(ctx, cartID, enums.CartStatusConverted)
}
