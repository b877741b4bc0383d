package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/internal/orders"
	"github.com/shoplane/shoplane-backend/internal/payments"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
	"github.com/shoplane/shoplane-backend/pkg/outbox/payloads"
)

const defaultReaperBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type expiredOrderLister interface {
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.Order, error)
}

// OrderExpiryJobParams configure the order expiry reaper.
type OrderExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Lister     expiredOrderLister
	Canceller  orderCanceller
	Payments   payments.Repository
	Outbox     outboxEmitter
	OrdersRepo orders.Repository
	BatchSize  int
}

// NewOrderExpiryJob builds the job that cancels unpaid orders past their TTL
// and returns their stock holds.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Lister == nil {
		return nil, fmt.Errorf("expired order lister required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultReaperBatchSize
	}
	return &orderExpiryJob{
		logg:       params.Logger,
		db:         params.DB,
		lister:     params.Lister,
		canceller:  params.Canceller,
		payments:   params.Payments,
		outbox:     params.Outbox,
		ordersRepo: params.OrdersRepo,
		batchSize:  batchSize,
		now:        time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg       *logger.Logger
	db         txRunner
	lister     expiredOrderLister
	canceller  orderCanceller
	payments   payments.Repository
	outbox     outboxEmitter
	ordersRepo orders.Repository
	batchSize  int
	now        func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry-reaper" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	expired, err := j.lister.ListExpired(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query expired orders: %w", err)
	}

	var errs []error
	count := 0
	for _, order := range expired {
		if err := j.expireOrder(ctx, order.ID); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		count++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired": count,
		"failed":  len(errs),
	})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return multierr.Combine(errs...)
}

// expireOrder runs in its own transaction so one stuck order cannot poison
// the whole sweep. The row is re-read under lock: a payment that landed
// after the listing wins and the order is skipped.
func (j *orderExpiryJob) expireOrder(ctx context.Context, orderID uuid.UUID) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := j.ordersRepo.WithTx(tx).GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != enums.OrderStatusAwaitingPayment {
			return nil
		}

		if _, err := j.canceller.Cancel(ctx, tx, orderID, "payment window expired"); err != nil {
			return err
		}
		if _, err := j.payments.WithTx(tx).FailPendingByOrder(ctx, orderID, "order expired"); err != nil {
			return err
		}

		now := j.now().UTC()
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderExpiredEvent{
				OrderID:   orderID,
				ExpiredAt: now,
			},
		})
	})
}
