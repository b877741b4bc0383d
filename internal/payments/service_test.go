package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/internal/finance"
	"github.com/shoplane/shoplane-backend/internal/gateway"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
)

func TestHandleNotificationSucceededPayment(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	orderID := uuid.New()
	promoCode := "SAVE10"
	env.orders.order = &models.Order{
		ID:         orderID,
		Status:     enums.OrderStatusAwaitingPayment,
		TotalCents: 4500,
		PromoCode:  &promoCode,
	}
	env.repo.payment = &models.Payment{
		ID:         uuid.New(),
		OrderID:    orderID,
		ExternalID: "pay-1",
		Status:     enums.PaymentStatusPending,
	}
	env.gateway.payment = &gateway.Payment{ID: "pay-1", Status: gateway.StatusSucceeded}

	if err := env.svc.HandleNotification(context.Background(), notification(EventPaymentSucceeded, "pay-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if env.orders.markPaidCalls != 1 {
		t.Fatalf("expected one MarkPaid, got %d", env.orders.markPaidCalls)
	}
	if env.repo.lastPaymentStatus != enums.PaymentStatusSucceeded {
		t.Fatalf("expected payment succeeded, got %q", env.repo.lastPaymentStatus)
	}
	if len(env.ledger.appended) != 1 || env.ledger.appended[0].Type != enums.FinanceTransactionTypeSale {
		t.Fatalf("expected one sale entry, got %+v", env.ledger.appended)
	}
	if env.ledger.appended[0].AmountCents != 4500 {
		t.Fatalf("expected sale amount 4500, got %d", env.ledger.appended[0].AmountCents)
	}
	if env.promos.redeemed != 1 {
		t.Fatalf("expected promo redeemed once, got %d", env.promos.redeemed)
	}
}

func TestHandleNotificationSaleEntryWrittenOnce(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	orderID := uuid.New()
	env.orders.order = &models.Order{ID: orderID, Status: enums.OrderStatusAwaitingPayment, TotalCents: 1000}
	env.repo.payment = &models.Payment{ID: uuid.New(), OrderID: orderID, ExternalID: "pay-1"}
	env.gateway.payment = &gateway.Payment{ID: "pay-1", Status: gateway.StatusSucceeded}
	env.ledger.hasSale = true

	if err := env.svc.HandleNotification(context.Background(), notification(EventPaymentSucceeded, "pay-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(env.ledger.appended) != 0 {
		t.Fatalf("expected no duplicate sale entry, got %+v", env.ledger.appended)
	}
}

func TestHandleNotificationIgnoresReplays(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	env.guard.seen["gateway-webhook|payment.succeeded:pay-1"] = true

	if err := env.svc.HandleNotification(context.Background(), notification(EventPaymentSucceeded, "pay-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if env.orders.markPaidCalls != 0 {
		t.Fatal("replayed event must not reach the order")
	}
}

func TestHandleNotificationTerminalPaymentAcks(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	env.repo.payment = &models.Payment{
		ID:         uuid.New(),
		OrderID:    uuid.New(),
		ExternalID: "pay-1",
		Status:     enums.PaymentStatusSucceeded,
	}

	if err := env.svc.HandleNotification(context.Background(), notification(EventPaymentSucceeded, "pay-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if env.gateway.getPaymentCalls != 0 {
		t.Fatal("terminal payments must not be re-verified")
	}
}

func TestHandleNotificationTrustsGatewayNotBody(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	orderID := uuid.New()
	env.orders.order = &models.Order{ID: orderID, Status: enums.OrderStatusAwaitingPayment, TotalCents: 1000}
	env.repo.payment = &models.Payment{ID: uuid.New(), OrderID: orderID, ExternalID: "pay-1"}
	// Body claims success, gateway says pending.
	env.gateway.payment = &gateway.Payment{ID: "pay-1", Status: gateway.StatusPending}

	if err := env.svc.HandleNotification(context.Background(), notification(EventPaymentSucceeded, "pay-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if env.orders.markPaidCalls != 0 {
		t.Fatal("unverified success must not mark the order paid")
	}
}

func TestHandleNotificationCanceledPayment(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	orderID := uuid.New()
	env.repo.payment = &models.Payment{ID: uuid.New(), OrderID: orderID, ExternalID: "pay-1"}
	env.gateway.payment = &gateway.Payment{ID: "pay-1", Status: gateway.StatusCanceled}

	if err := env.svc.HandleNotification(context.Background(), notification(EventPaymentCanceled, "pay-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if env.repo.lastPaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected payment failed, got %q", env.repo.lastPaymentStatus)
	}
	if env.orders.cancelCalls != 1 {
		t.Fatalf("expected one Cancel, got %d", env.orders.cancelCalls)
	}
	if len(env.events.emitted) != 1 || env.events.emitted[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected payment_failed event, got %+v", env.events.emitted)
	}
}

func TestHandleNotificationUnknownEventAcks(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	if err := env.svc.HandleNotification(context.Background(), notification("payment.captured", "pay-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(env.guard.seen) != 0 {
		t.Fatal("unknown events must not consume the guard")
	}
}

func TestHandleNotificationInvalidPayload(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	err := env.svc.HandleNotification(context.Background(), &Notification{Type: "notification"})
	assertErrCode(t, err, pkgerrors.CodeValidation)
}

func TestHandleNotificationPaymentRequiresOrderID(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	env.repo.payment = &models.Payment{ID: uuid.New(), OrderID: uuid.New(), ExternalID: "pay-1"}

	n := notification(EventPaymentSucceeded, "pay-1")
	n.Object.Metadata.OrderID = ""
	err := env.svc.HandleNotification(context.Background(), n)
	assertErrCode(t, err, pkgerrors.CodeValidation)

	if env.gateway.getPaymentCalls != 0 {
		t.Fatal("malformed notification must not reach the gateway")
	}
	if len(env.guard.seen) != 0 {
		t.Fatal("malformed notification must not consume the event guard")
	}

	// Refund events carry no order metadata and stay valid without it.
	env.repo.refund = &models.Refund{ID: uuid.New(), OrderID: uuid.New(), ExternalID: "ref-1", Status: enums.RefundStatusSucceeded}
	rn := notification(EventRefundSucceeded, "ref-1")
	rn.Object.Metadata.OrderID = ""
	if err := env.svc.HandleNotification(context.Background(), rn); err != nil {
		t.Fatalf("refund without order metadata: %v", err)
	}
}

func TestHandleNotificationReleasesGuardOnFailure(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	env.repo.payment = &models.Payment{ID: uuid.New(), OrderID: uuid.New(), ExternalID: "pay-1"}
	env.gateway.err = pkgerrors.New(pkgerrors.CodeGatewayError, "gateway down")

	err := env.svc.HandleNotification(context.Background(), notification(EventPaymentSucceeded, "pay-1"))
	assertErrCode(t, err, pkgerrors.CodeGatewayError)
	if len(env.guard.seen) != 0 {
		t.Fatal("failed processing must release the event guard")
	}
}

func TestHandleRefundSucceeded(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	orderID := uuid.New()
	env.orders.order = &models.Order{ID: orderID, Status: enums.OrderStatusDelivered, TotalCents: 3000}
	env.repo.refund = &models.Refund{
		ID:          uuid.New(),
		OrderID:     orderID,
		ExternalID:  "ref-1",
		Status:      enums.RefundStatusPending,
		AmountCents: 3000,
	}
	env.repo.refundedCents = 3000
	env.gateway.refund = &gateway.Refund{ID: "ref-1", Status: gateway.StatusSucceeded}

	if err := env.svc.HandleNotification(context.Background(), notification(EventRefundSucceeded, "ref-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if env.repo.lastRefundStatus != enums.RefundStatusSucceeded {
		t.Fatalf("expected refund succeeded, got %q", env.repo.lastRefundStatus)
	}
	if len(env.ledger.appended) != 1 || env.ledger.appended[0].AmountCents != -3000 {
		t.Fatalf("expected negative ledger entry, got %+v", env.ledger.appended)
	}
	// Full refund of a delivered order cancels it.
	if env.orders.cancelCalls != 1 {
		t.Fatalf("expected delivered order cancelled, got %d cancels", env.orders.cancelCalls)
	}
	if len(env.events.emitted) != 1 || env.events.emitted[0].EventType != enums.EventOrderRefunded {
		t.Fatalf("expected order_refunded event, got %+v", env.events.emitted)
	}
}

func TestResolveAppliesVerifiedStatus(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	orderID := uuid.New()
	env.orders.order = &models.Order{ID: orderID, Status: enums.OrderStatusAwaitingPayment, TotalCents: 2000}
	env.repo.payment = &models.Payment{ID: uuid.New(), OrderID: orderID, ExternalID: "pay-1"}
	env.gateway.payment = &gateway.Payment{ID: "pay-1", Status: gateway.StatusSucceeded}

	if _, err := env.svc.Resolve(context.Background(), orderID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if env.orders.markPaidCalls != 1 {
		t.Fatalf("expected one MarkPaid, got %d", env.orders.markPaidCalls)
	}
}

func TestRequestRefundEnforcesBound(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	orderID := uuid.New()
	paidAt := time.Now()
	env.orders.order = &models.Order{
		ID:         orderID,
		Status:     enums.OrderStatusPaid,
		TotalCents: 5000,
		PaidAt:     &paidAt,
		Payments: []models.Payment{{
			ID:         uuid.New(),
			OrderID:    orderID,
			ExternalID: "pay-1",
			Status:     enums.PaymentStatusSucceeded,
		}},
	}
	env.repo.refundedCents = 3000

	_, err := env.svc.RequestRefund(context.Background(), orderID, 2500)
	assertErrCode(t, err, pkgerrors.CodeRefundExceeds)

	refund, err := env.svc.RequestRefund(context.Background(), orderID, 2000)
	if err != nil {
		t.Fatalf("request refund: %v", err)
	}
	if refund.Status != enums.RefundStatusPending || refund.AmountCents != 2000 {
		t.Fatalf("unexpected refund %+v", refund)
	}
	if refund.ExternalID != "gw-ref-1" {
		t.Fatalf("expected gateway refund id, got %q", refund.ExternalID)
	}
}

func TestRequestRefundRequiresPaidOrder(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	orderID := uuid.New()
	env.orders.order = &models.Order{ID: orderID, Status: enums.OrderStatusAwaitingPayment, TotalCents: 5000}

	_, err := env.svc.RequestRefund(context.Background(), orderID, 1000)
	assertErrCode(t, err, pkgerrors.CodeStateConflict)
}

func notification(event, objectID string) *Notification {
	n := &Notification{
		Type:  "notification",
		Event: event,
		Object: NotificationObject{
			ID:     objectID,
			Status: "unverified",
			Amount: NotificationAmount{Value: "10.00", Currency: "RUB"},
		},
	}
	n.Object.Metadata.OrderID = uuid.NewString()
	return n
}

func assertErrCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

type reconcilerEnv struct {
	svc     Service
	repo    *stubPaymentsRepo
	orders  *stubOrders
	ledger  *stubLedger
	promos  *stubRedeemer
	gateway *stubGatewayClient
	guard   *stubGuard
	events  *stubEvents
}

func newReconcilerEnv(t *testing.T) *reconcilerEnv {
	t.Helper()
	env := &reconcilerEnv{
		repo:    &stubPaymentsRepo{},
		orders:  &stubOrders{},
		ledger:  &stubLedger{},
		promos:  &stubRedeemer{},
		gateway: &stubGatewayClient{},
		guard:   newStubGuard(),
		events:  &stubEvents{},
	}
	svc, err := NewService(ServiceParams{
		Repo:     env.repo,
		Orders:   env.orders,
		Ledger:   env.ledger,
		Promos:   env.promos,
		Gateway:  env.gateway,
		Guard:    env.guard,
		Events:   env.events,
		TxRunner: stubTx{},
		Logger:   logger.New(logger.Options{Output: io.Discard}),
		Currency: "RUB",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	env.svc = svc
	return env
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubPaymentsRepo struct {
	payment           *models.Payment
	refund            *models.Refund
	refundedCents     int
	lastPaymentStatus enums.PaymentStatus
	lastRefundStatus  enums.RefundStatus
	createdRefunds    []*models.Refund
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPaymentsRepo) GetPaymentByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	if s.payment == nil || s.payment.ExternalID != externalID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) GetPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pending payment not found")
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, updates map[string]any) error {
	s.lastPaymentStatus = status
	return nil
}

func (s *stubPaymentsRepo) FailPendingByOrder(ctx context.Context, orderID uuid.UUID, reason string) (int64, error) {
	return 0, nil
}

func (s *stubPaymentsRepo) CreateRefund(ctx context.Context, refund *models.Refund) error {
	refund.ID = uuid.New()
	s.createdRefunds = append(s.createdRefunds, refund)
	return nil
}

func (s *stubPaymentsRepo) GetRefundByExternalID(ctx context.Context, externalID string) (*models.Refund, error) {
	if s.refund == nil || s.refund.ExternalID != externalID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
	}
	return s.refund, nil
}

func (s *stubPaymentsRepo) UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus, updates map[string]any) error {
	s.lastRefundStatus = status
	return nil
}

func (s *stubPaymentsRepo) SumSucceededRefunds(ctx context.Context, orderID uuid.UUID) (int, error) {
	return s.refundedCents, nil
}

type stubOrders struct {
	order         *models.Order
	markPaidCalls int
	cancelCalls   int
}

func (s *stubOrders) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.order, nil
}

func (s *stubOrders) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) (*models.Order, error) {
	s.markPaidCalls++
	if s.order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	s.order.Status = enums.OrderStatusPaid
	s.order.PaidAt = &paidAt
	return s.order, nil
}

func (s *stubOrders) Cancel(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.Order, error) {
	s.cancelCalls++
	if s.order == nil {
		return &models.Order{ID: orderID, Status: enums.OrderStatusCancelled}, nil
	}
	s.order.Status = enums.OrderStatusCancelled
	return s.order, nil
}

type stubLedger struct {
	hasSale  bool
	appended []finance.AppendInput
}

func (s *stubLedger) Append(ctx context.Context, tx *gorm.DB, input finance.AppendInput) (*models.FinanceTransaction, error) {
	s.appended = append(s.appended, input)
	return &models.FinanceTransaction{}, nil
}

func (s *stubLedger) HasEntry(ctx context.Context, orderID uuid.UUID, txnType enums.FinanceTransactionType) (bool, error) {
	if txnType == enums.FinanceTransactionTypeSale {
		return s.hasSale, nil
	}
	return false, nil
}

type stubRedeemer struct {
	redeemed int
}

func (s *stubRedeemer) Redeem(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	s.redeemed++
	return true, nil
}

type stubGatewayClient struct {
	payment         *gateway.Payment
	refund          *gateway.Refund
	err             error
	getPaymentCalls int
}

func (s *stubGatewayClient) GetPayment(ctx context.Context, externalID string) (*gateway.Payment, error) {
	s.getPaymentCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.payment, nil
}

func (s *stubGatewayClient) GetRefund(ctx context.Context, externalID string) (*gateway.Refund, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.refund, nil
}

func (s *stubGatewayClient) CreateRefund(ctx context.Context, req gateway.CreateRefundRequest) (*gateway.Refund, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &gateway.Refund{ID: "gw-ref-1", Status: gateway.StatusPending, PaymentID: req.PaymentID}, nil
}

type stubGuard struct {
	seen map[string]bool
}

func newStubGuard() *stubGuard {
	return &stubGuard{seen: make(map[string]bool)}
}

func (s *stubGuard) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key := consumer + "|" + eventID
	if s.seen[key] {
		return true, nil
	}
	s.seen[key] = true
	return false, nil
}

func (s *stubGuard) Delete(ctx context.Context, consumer, eventID string) error {
	delete(s.seen, consumer+"|"+eventID)
	return nil
}

type stubEvents struct {
	emitted []outbox.DomainEvent
}

func (s *stubEvents) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.emitted = append(s.emitted, event)
	return nil
}
