package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/pagination"
)

type stockCall struct {
	op    string
	skuID uuid.UUID
	qty   int
}

type fakeStockMover struct {
	calls []stockCall
}

func (f *fakeStockMover) Finalize(_ context.Context, _ *gorm.DB, skuID uuid.UUID, qty int) error {
	f.calls = append(f.calls, stockCall{op: "finalize", skuID: skuID, qty: qty})
	return nil
}

func (f *fakeStockMover) Release(_ context.Context, _ *gorm.DB, skuID uuid.UUID, qty int) error {
	f.calls = append(f.calls, stockCall{op: "release", skuID: skuID, qty: qty})
	return nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ordersDDL := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'awaiting_payment',
  subtotal_cents INTEGER NOT NULL,
  delivery_cost_cents INTEGER NOT NULL DEFAULT 0,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  promo_code TEXT,
  delivery_method TEXT NOT NULL DEFAULT 'courier',
  contact_name TEXT NOT NULL DEFAULT '',
  contact_email TEXT NOT NULL DEFAULT '',
  contact_phone TEXT NOT NULL DEFAULT '',
  delivery_address TEXT NOT NULL DEFAULT '',
  delivery_postcode TEXT,
  expires_at DATETIME,
  paid_at DATETIME,
  canceled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	itemsDDL := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  sku_id TEXT NOT NULL,
  title TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  created_at DATETIME
);`
	paymentsDDL := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  external_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  amount_cents INTEGER NOT NULL,
  payment_url TEXT,
  provider_response TEXT,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, ddl := range []string{ordersDDL, itemsDDL, paymentsDDL} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func newTestOrderService(t *testing.T, db *gorm.DB, mover *fakeStockMover) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), mover, nil, gormTxRunner{db: db})
	require.NoError(t, err)
	return svc
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, items []models.OrderItem) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Status:         status,
		SubtotalCents:  5000,
		TotalCents:     5000,
		DeliveryMethod: "courier",
	}
	require.NoError(t, db.Create(order).Error)
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
		if items[i].Title == "" {
			items[i].Title = "item"
		}
	}
	if len(items) > 0 {
		require.NoError(t, db.Create(&items).Error)
	}
	order.Items = items
	return order
}

func TestMarkPaidFinalizesStock(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	mover := &fakeStockMover{}
	svc := newTestOrderService(t, db, mover)
	ctx := context.Background()

	skuA, skuB := uuid.New(), uuid.New()
	order := seedOrder(t, db, enums.OrderStatusAwaitingPayment, []models.OrderItem{
		{SKUID: skuA, UnitPriceCents: 1000, Qty: 2},
		{SKUID: skuB, UnitPriceCents: 3000, Qty: 1},
	})
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("expires_at", time.Now().Add(30*time.Minute)).Error)

	paidAt := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		updated, terr := svc.MarkPaid(ctx, tx, order.ID, paidAt)
		if terr != nil {
			return terr
		}
		assert.Equal(t, enums.OrderStatusPaid, updated.Status)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, mover.calls, 2)
	assert.Equal(t, "finalize", mover.calls[0].op)
	assert.Equal(t, skuA, mover.calls[0].skuID)
	assert.Equal(t, 2, mover.calls[0].qty)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	assert.Nil(t, stored.ExpiresAt)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	mover := &fakeStockMover{}
	svc := newTestOrderService(t, db, mover)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusAwaitingPayment, []models.OrderItem{
		{SKUID: uuid.New(), UnitPriceCents: 5000, Qty: 1},
	})

	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			_, terr := svc.MarkPaid(ctx, tx, order.ID, time.Now())
			return terr
		})
		require.NoError(t, err)
	}

	// Second call was a no-op: stock finalized exactly once.
	assert.Len(t, mover.calls, 1)
}

func TestMarkPaidRejectsCancelledOrder(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newTestOrderService(t, db, &fakeStockMover{})
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusCancelled, nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.MarkPaid(ctx, tx, order.ID, time.Now())
		return terr
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCancelReleasesStockOnlyBeforePayment(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	mover := &fakeStockMover{}
	svc := newTestOrderService(t, db, mover)
	ctx := context.Background()

	unpaid := seedOrder(t, db, enums.OrderStatusAwaitingPayment, []models.OrderItem{
		{SKUID: uuid.New(), UnitPriceCents: 1000, Qty: 3},
	})
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", unpaid.ID).Update("expires_at", time.Now().Add(30*time.Minute)).Error)
	paid := seedOrder(t, db, enums.OrderStatusPaid, []models.OrderItem{
		{SKUID: uuid.New(), UnitPriceCents: 1000, Qty: 1},
	})

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Cancel(ctx, tx, unpaid.ID, "buyer request")
		return terr
	})
	require.NoError(t, err)
	require.Len(t, mover.calls, 1)
	assert.Equal(t, "release", mover.calls[0].op)
	assert.Equal(t, 3, mover.calls[0].qty)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", unpaid.ID).Error)
	assert.Nil(t, stored.ExpiresAt)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Cancel(ctx, tx, paid.ID, "admin")
		return terr
	})
	require.NoError(t, err)
	// No release call for the paid order: its reservation was consumed.
	assert.Len(t, mover.calls, 1)
}

func TestCancelRejectsShippedOrder(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newTestOrderService(t, db, &fakeStockMover{})
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusShipped, nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Cancel(ctx, tx, order.ID, "late")
		return terr
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCancelForUser(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newTestOrderService(t, db, &fakeStockMover{})
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusAwaitingPayment, nil)

	_, err := svc.CancelForUser(ctx, order.ID, uuid.New(), "not mine")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	updated, err := svc.CancelForUser(ctx, order.ID, order.UserID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, updated.Status)

	paid := seedOrder(t, db, enums.OrderStatusPaid, nil)
	_, err = svc.CancelForUser(ctx, paid.ID, paid.UserID, "too late")
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestAdvanceWalksFulfillmentPath(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newTestOrderService(t, db, &fakeStockMover{})
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPaid, nil)

	// Skipping processing is not allowed.
	_, err := svc.Advance(ctx, order.ID, enums.OrderStatusShipped)
	require.Error(t, err)

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	} {
		updated, err := svc.Advance(ctx, order.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	// paid is not a fulfillment status.
	_, err = svc.Advance(ctx, order.ID, enums.OrderStatusPaid)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestListExpired(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newTestOrderService(t, db, &fakeStockMover{})
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := seedOrder(t, db, enums.OrderStatusAwaitingPayment, nil)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", expired.ID).Update("expires_at", past).Error)

	fresh := seedOrder(t, db, enums.OrderStatusAwaitingPayment, nil)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", fresh.ID).Update("expires_at", future).Error)

	alreadyPaid := seedOrder(t, db, enums.OrderStatusPaid, nil)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", alreadyPaid.ID).Update("expires_at", past).Error)

	rows, err := svc.ListExpired(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, expired.ID, rows[0].ID)
}

func TestListByUserPaginates(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newTestOrderService(t, db, &fakeStockMover{})
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		order := &models.Order{
			ID:             uuid.New(),
			UserID:         userID,
			Status:         enums.OrderStatusAwaitingPayment,
			SubtotalCents:  1000,
			TotalCents:     1000,
			DeliveryMethod: "courier",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(order).Error)
	}

	page1, err := svc.ListByUser(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Orders, 2)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := svc.ListByUser(ctx, userID, pagination.Params{Limit: 2, Cursor: page1.NextCursor})
	require.NoError(t, err)
	require.Len(t, page2.Orders, 2)

	// Pages never overlap.
	seen := map[uuid.UUID]bool{}
	for _, order := range append(page1.Orders, page2.Orders...) {
		require.False(t, seen[order.ID])
		seen[order.ID] = true
	}

	page3, err := svc.ListByUser(ctx, userID, pagination.Params{Limit: 2, Cursor: page2.NextCursor})
	require.NoError(t, err)
	require.Len(t, page3.Orders, 1)
	assert.Empty(t, page3.NextCursor)
}
