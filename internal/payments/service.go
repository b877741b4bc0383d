package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/internal/finance"
	"github.com/shoplane/shoplane-backend/internal/gateway"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
	"github.com/shoplane/shoplane-backend/pkg/outbox/payloads"
)

// webhookConsumer namespaces the redis event guard for this pipeline.
const webhookConsumer = "gateway-webhook"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderLifecycle interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) (*models.Order, error)
	Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.Order, error)
}

type ledgerAppender interface {
	Append(ctx context.Context, tx *gorm.DB, input finance.AppendInput) (*models.FinanceTransaction, error)
	HasEntry(ctx context.Context, orderID uuid.UUID, txnType enums.FinanceTransactionType) (bool, error)
}

type promoRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, code string) (bool, error)
}

type gatewayClient interface {
	GetPayment(ctx context.Context, externalID string) (*gateway.Payment, error)
	GetRefund(ctx context.Context, externalID string) (*gateway.Refund, error)
	CreateRefund(ctx context.Context, req gateway.CreateRefundRequest) (*gateway.Refund, error)
}

type eventGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service reconciles gateway payment state with orders, stock and the
// ledger. Both the webhook pipeline and the polling path converge on the
// same status application, so replays and races resolve identically.
type Service interface {
	HandleNotification(ctx context.Context, notification *Notification) error
	// Resolve polls the gateway for the order's pending payment and applies
	// the verified status. Used when webhooks are delayed or lost.
	Resolve(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RequestRefund(ctx context.Context, orderID uuid.UUID, amountCents int) (*models.Refund, error)
}

// ServiceParams collects the reconciler's dependencies.
type ServiceParams struct {
	Repo     Repository
	Orders   orderLifecycle
	Ledger   ledgerAppender
	Promos   promoRedeemer
	Gateway  gatewayClient
	Guard    eventGuard
	Events   eventEmitter
	TxRunner txRunner
	Logger   *logger.Logger
	Currency string
}

type service struct {
	repo     Repository
	orders   orderLifecycle
	ledger   ledgerAppender
	promos   promoRedeemer
	gateway  gatewayClient
	guard    eventGuard
	events   eventEmitter
	tx       txRunner
	logg     *logger.Logger
	validate *validator.Validate
	currency string
	now      func() time.Time
}

// NewService wires the payment reconciler.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository is required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order lifecycle is required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger appender is required")
	}
	if params.Promos == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "promo redeemer is required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client is required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event guard is required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event emitter is required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger is required")
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		ledger:   params.Ledger,
		promos:   params.Promos,
		gateway:  params.Gateway,
		guard:    params.Guard,
		events:   params.Events,
		tx:       params.TxRunner,
		logg:     params.Logger,
		validate: validator.New(),
		currency: params.Currency,
		now:      time.Now,
	}, nil
}

func (s *service) HandleNotification(ctx context.Context, notification *Notification) error {
	if notification == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification body required")
	}
	if err := s.validate.Struct(notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification payload")
	}

	switch notification.Event {
	case EventPaymentSucceeded, EventPaymentCanceled, EventPaymentWaitingForCapture, EventRefundSucceeded:
	default:
		ctx = s.logg.WithField(ctx, "event", notification.Event)
		s.logg.Info(ctx, "ignoring unhandled gateway event")
		return nil
	}
	if notification.Event != EventRefundSucceeded && notification.Object.Metadata.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment notification missing metadata.order_id")
	}

	eventID := notification.Event + ":" + notification.Object.ID
	already, err := s.guard.CheckAndMarkProcessed(ctx, webhookConsumer, eventID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	if notification.Event == EventRefundSucceeded {
		err = s.handleRefundEvent(ctx, notification.Object.ID)
	} else {
		err = s.handlePaymentEvent(ctx, notification.Object.ID)
	}
	if err != nil {
		// Give the gateway's retry a clean slate.
		if delErr := s.guard.Delete(ctx, webhookConsumer, eventID); delErr != nil {
			s.logg.Error(ctx, "release webhook event guard", delErr)
		}
		return err
	}
	return nil
}

func (s *service) handlePaymentEvent(ctx context.Context, externalID string) error {
	payment, err := s.repo.GetPaymentByExternalID(ctx, externalID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			ctx = s.logg.WithPaymentID(ctx, externalID)
			s.logg.Warn(ctx, "webhook references unknown payment")
			return nil
		}
		return err
	}
	if payment.Status.IsTerminal() {
		return nil
	}

	// Never trust the webhook body: the provider is re-queried and only the
	// verified status is applied.
	verified, err := s.gateway.GetPayment(ctx, externalID)
	if err != nil {
		return err
	}
	return s.applyPaymentStatus(ctx, payment, verified)
}

func (s *service) applyPaymentStatus(ctx context.Context, payment *models.Payment, verified *gateway.Payment) error {
	raw, err := json.Marshal(verified)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal provider response")
	}

	switch verified.Status {
	case gateway.StatusSucceeded:
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.orders.MarkPaid(ctx, tx, payment.OrderID, s.now())
			if err != nil {
				return err
			}
			repo := s.repo.WithTx(tx)
			if err := repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusSucceeded, map[string]any{
				"provider_response": raw,
			}); err != nil {
				return err
			}
			if err := s.appendSaleEntry(ctx, tx, order); err != nil {
				return err
			}
			s.redeemPromo(ctx, tx, order)
			return nil
		})
	case gateway.StatusCanceled:
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			reason := "canceled by provider"
			if err := repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusFailed, map[string]any{
				"provider_response": raw,
				"failure_reason":    reason,
			}); err != nil {
				return err
			}
			if _, err := s.orders.Cancel(ctx, tx, payment.OrderID, "payment canceled"); err != nil {
				return err
			}
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregatePayment,
				AggregateID:   payment.ID,
				Data: payloads.PaymentFailedEvent{
					OrderID:           payment.OrderID,
					PaymentExternalID: payment.ExternalID,
					Reason:            reason,
				},
				Version: 1,
			})
		})
	case gateway.StatusWaitingForCapture:
		// Funds are on hold; the order stays awaiting_payment until capture.
		return s.repo.UpdatePaymentStatus(ctx, payment.ID, payment.Status, map[string]any{
			"provider_response": raw,
		})
	default:
		return nil
	}
}

func (s *service) appendSaleEntry(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	exists, err := s.ledger.HasEntry(ctx, order.ID, enums.FinanceTransactionTypeSale)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	orderID := order.ID
	_, err = s.ledger.Append(ctx, tx, finance.AppendInput{
		Type:        enums.FinanceTransactionTypeSale,
		AmountCents: order.TotalCents,
		OrderID:     &orderID,
	})
	return err
}

// redeemPromo burns a promo use at payment confirmation. The quoted discount
// stands even when the code sold out in the meantime, so a refusal is logged
// and never fails the payment.
func (s *service) redeemPromo(ctx context.Context, tx *gorm.DB, order *models.Order) {
	if order.PromoCode == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"promo_code": *order.PromoCode,
	})
	redeemed, err := s.promos.Redeem(ctx, tx, *order.PromoCode)
	if err != nil {
		s.logg.Error(ctx, "redeem promo code", err)
		return
	}
	if !redeemed {
		s.logg.Warn(ctx, "promo usage limit reached after quote")
	}
}

func (s *service) handleRefundEvent(ctx context.Context, externalID string) error {
	refund, err := s.repo.GetRefundByExternalID(ctx, externalID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			ctx = s.logg.WithField(ctx, "refund_external_id", externalID)
			s.logg.Warn(ctx, "webhook references unknown refund")
			return nil
		}
		return err
	}
	if refund.Status == enums.RefundStatusSucceeded {
		return nil
	}

	verified, err := s.gateway.GetRefund(ctx, externalID)
	if err != nil {
		return err
	}
	if verified.Status != gateway.StatusSucceeded {
		return nil
	}
	raw, err := json.Marshal(verified)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal provider response")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateRefundStatus(ctx, refund.ID, enums.RefundStatusSucceeded, map[string]any{
			"provider_response": raw,
		}); err != nil {
			return err
		}

		orderID := refund.OrderID
		if _, err := s.ledger.Append(ctx, tx, finance.AppendInput{
			Type:        enums.FinanceTransactionTypeRefund,
			AmountCents: -refund.AmountCents,
			OrderID:     &orderID,
		}); err != nil {
			return err
		}

		order, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		refunded, err := repo.SumSucceededRefunds(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusDelivered && refunded >= order.TotalCents {
			if _, err := s.orders.Cancel(ctx, tx, orderID, "fully refunded"); err != nil {
				return err
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Data: payloads.OrderRefundedEvent{
				OrderID:          orderID,
				RefundExternalID: refund.ExternalID,
				AmountCents:      refund.AmountCents,
			},
			Version: 1,
		})
	})
}

func (s *service) Resolve(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.GetPendingByOrder(ctx, orderID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return order, nil
		}
		return nil, err
	}

	verified, err := s.gateway.GetPayment(ctx, payment.ExternalID)
	if err != nil {
		return nil, err
	}
	if err := s.applyPaymentStatus(ctx, payment, verified); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, orderID)
}

func (s *service) RequestRefund(ctx context.Context, orderID uuid.UUID, amountCents int) (*models.Refund, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaidAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order was never paid")
	}

	refunded, err := s.repo.SumSucceededRefunds(ctx, orderID)
	if err != nil {
		return nil, err
	}
	remaining := order.TotalCents - refunded
	if amountCents > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeRefundExceeds, "refund exceeds remaining order balance").
			WithDetails(map[string]any{
				"requested_cents": amountCents,
				"remaining_cents": remaining,
			})
	}

	var succeeded *models.Payment
	for i := range order.Payments {
		if order.Payments[i].Status == enums.PaymentStatusSucceeded {
			succeeded = &order.Payments[i]
			break
		}
	}
	if succeeded == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no succeeded payment")
	}

	gwRefund, err := s.gateway.CreateRefund(ctx, gateway.CreateRefundRequest{
		PaymentID:   succeeded.ExternalID,
		AmountCents: amountCents,
		Currency:    s.currency,
		OrderID:     orderID,
	})
	if err != nil {
		return nil, err
	}

	refund := &models.Refund{
		OrderID:           orderID,
		PaymentExternalID: succeeded.ExternalID,
		ExternalID:        gwRefund.ID,
		Status:            enums.RefundStatusPending,
		AmountCents:       amountCents,
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		return nil, err
	}
	return refund, nil
}
