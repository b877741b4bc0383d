package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
	"github.com/shoplane/shoplane-backend/pkg/outbox/payloads"
	"github.com/shoplane/shoplane-backend/pkg/pagination"
)

// StockMover is the slice of the stock service the order lifecycle needs.
type StockMover interface {
	Finalize(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error
}

// EventEmitter writes domain events in the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the order state machine. Transitions that touch stock or
// money always run inside the caller's transaction so order status, stock
// counters, and ledger rows move together.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) (*models.Order, error)
	Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.Order, error)
	CancelForUser(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error)
	Advance(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   Repository
	stock  StockMover
	events EventEmitter
	db     txRunner
}

// NewService wires an order service with its collaborators.
func NewService(repo Repository, stockMover StockMover, events EventEmitter, db txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if stockMover == nil {
		return nil, fmt.Errorf("stock mover required")
	}
	if db == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, stock: stockMover, events: events, db: db}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	return s.repo.ListByUser(ctx, userID, params)
}

func (s *service) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return s.repo.ListExpired(ctx, cutoff, limit)
}

// MarkPaid moves an order to paid and consumes its stock reservations. A
// second call for an already-paid order is a no-op so replayed payment
// confirmations stay harmless.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	order, err := repo.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusPaid {
		return order, nil
	}
	if !CanTransition(order.Status, enums.OrderStatusPaid) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be marked paid").
			WithDetails(map[string]any{"order_id": orderID.String(), "status": order.Status})
	}

	for _, item := range order.Items {
		if err := s.stock.Finalize(ctx, tx, item.SKUID, item.Qty); err != nil {
			return nil, err
		}
	}

	// expires_at only has meaning while the order awaits payment.
	if err := repo.UpdateStatus(ctx, orderID, enums.OrderStatusPaid, map[string]any{"paid_at": paidAt, "expires_at": nil}); err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusPaid
	order.PaidAt = &paidAt
	order.ExpiresAt = nil

	if s.events != nil {
		err = s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:     order.ID,
				AmountCents: order.TotalCents,
				PaidAt:      paidAt,
			},
			Version: 1,
		})
		if err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Cancel moves an order to cancelled. Stock reservations are returned only
// when the order is still awaiting payment; later states have already
// consumed them.
func (s *service) Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	order, err := repo.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusCancelled {
		return order, nil
	}
	if !CanTransition(order.Status, enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled").
			WithDetails(map[string]any{"order_id": orderID.String(), "status": order.Status})
	}

	fromStatus := order.Status
	if fromStatus == enums.OrderStatusAwaitingPayment {
		for _, item := range order.Items {
			if err := s.stock.Release(ctx, tx, item.SKUID, item.Qty); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now()
	if err := repo.UpdateStatus(ctx, orderID, enums.OrderStatusCancelled, map[string]any{"canceled_at": now, "expires_at": nil}); err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusCancelled
	order.CanceledAt = &now
	order.ExpiresAt = nil

	if s.events != nil {
		err = s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCanceledEvent{
				OrderID:    order.ID,
				FromStatus: fromStatus,
				CanceledAt: now,
				Reason:     reason,
			},
			Version: 1,
		})
		if err != nil {
			return nil, err
		}
	}
	return order, nil
}

// CancelForUser is the API-facing cancel: buyers may only cancel their own
// orders, and only while they are still awaiting payment.
func (s *service) CancelForUser(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error) {
	var out *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusAwaitingPayment {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only unpaid orders can be cancelled by the buyer").
				WithDetails(map[string]any{"status": order.Status})
		}
		out, err = s.Cancel(ctx, tx, orderID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Advance moves an order along the fulfillment path
// (paid -> processing -> shipped -> delivered).
func (s *service) Advance(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	if to != enums.OrderStatusProcessing && to != enums.OrderStatusShipped && to != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%q is not a fulfillment status", to))
	}

	var out *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, to) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": to})
		}
		if err := repo.UpdateStatus(ctx, orderID, to, nil); err != nil {
			return err
		}
		order.Status = to
		out = order

		if s.events != nil && (to == enums.OrderStatusShipped || to == enums.OrderStatusDelivered) {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderFulfilled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data:          payloads.OrderFulfilledEvent{OrderID: order.ID, Status: to},
				Version:       1,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
