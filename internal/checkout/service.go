package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/internal/cart"
	"github.com/shoplane/shoplane-backend/internal/gateway"
	"github.com/shoplane/shoplane-backend/internal/orders"
	"github.com/shoplane/shoplane-backend/internal/promo"
	"github.com/shoplane/shoplane-backend/internal/stock"
	"github.com/shoplane/shoplane-backend/pkg/config"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
	"github.com/shoplane/shoplane-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	ReserveAll(ctx context.Context, tx *gorm.DB, requests []stock.ReservationRequest) error
}

type promoValidator interface {
	Validate(ctx context.Context, code string, subtotalCents int) (*promo.Quote, error)
}

type paymentCreator interface {
	CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.Payment, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CheckoutInput carries the buyer-provided order details.
type CheckoutInput struct {
	DeliveryMethod   string `validate:"required,oneof=pickup courier"`
	ContactName      string `validate:"required,max=200"`
	ContactEmail     string `validate:"required,email"`
	ContactPhone     string `validate:"omitempty,max=32"`
	DeliveryAddress  string `validate:"omitempty,max=500"`
	DeliveryPostcode string `validate:"omitempty,max=16"`
	PromoCode        string `validate:"omitempty,max=64"`
}

// Result is what the API returns after a successful checkout.
type Result struct {
	Order           *models.Order
	Payment         *models.Payment
	ConfirmationURL string
}

// Service converts a user's active cart into an order awaiting payment.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error)
}

type service struct {
	tx       txRunner
	carts    cart.Repository
	orders   orders.Repository
	stock    stockReserver
	promos   promoValidator
	shipping ShippingQuoter
	gateway  paymentCreator
	events   eventEmitter

	orderTTL  time.Duration
	currency  string
	returnURL string
	now       func() time.Time
}

// NewService wires the checkout orchestrator.
func NewService(
	tx txRunner,
	carts cart.Repository,
	ordersRepo orders.Repository,
	stockSvc stockReserver,
	promos promoValidator,
	shipping ShippingQuoter,
	gatewayClient paymentCreator,
	events eventEmitter,
	checkoutCfg config.CheckoutConfig,
	gatewayCfg config.GatewayConfig,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner is required")
	}
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository is required")
	}
	if ordersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository is required")
	}
	if stockSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock reserver is required")
	}
	if promos == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "promo validator is required")
	}
	if shipping == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipping quoter is required")
	}
	if gatewayClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client is required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event emitter is required")
	}
	orderTTL := checkoutCfg.OrderTTL
	if orderTTL <= 0 {
		orderTTL = 30 * time.Minute
	}
	return &service{
		tx:        tx,
		carts:     carts,
		orders:    ordersRepo,
		stock:     stockSvc,
		promos:    promos,
		shipping:  shipping,
		gateway:   gatewayClient,
		events:    events,
		orderTTL:  orderTTL,
		currency:  gatewayCfg.Currency,
		returnURL: gatewayCfg.ReturnURL,
		now:       time.Now,
	}, nil
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.DeliveryMethod == DeliveryMethodCourier && input.DeliveryAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required for courier delivery")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		record, err := carts.GetActiveByUser(ctx, userID)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
			}
			return err
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
		}

		items, subtotal, weight, err := snapshotItems(record.Items)
		if err != nil {
			return err
		}

		discount := 0
		var promoCode *string
		if input.PromoCode != "" {
			quote, err := s.promos.Validate(ctx, input.PromoCode, subtotal)
			if err != nil {
				return err
			}
			discount = quote.DiscountCents
			promoCode = &quote.Code
		}

		requests := make([]stock.ReservationRequest, len(record.Items))
		for i, item := range record.Items {
			requests[i] = stock.ReservationRequest{SKUID: item.SKUID, Qty: item.Qty}
		}
		if err := s.stock.ReserveAll(ctx, tx, requests); err != nil {
			return err
		}

		deliveryCost, err := s.shipping.Quote(ctx, input.DeliveryMethod, subtotal, weight)
		if err != nil {
			return err
		}

		total := subtotal - discount + deliveryCost
		if total < 0 {
			total = 0
		}

		expiresAt := s.now().Add(s.orderTTL)
		order := &models.Order{
			UserID:            userID,
			Status:            enums.OrderStatusAwaitingPayment,
			SubtotalCents:     subtotal,
			DeliveryCostCents: deliveryCost,
			DiscountCents:     discount,
			TotalCents:        total,
			PromoCode:         promoCode,
			DeliveryMethod:    input.DeliveryMethod,
			ContactName:       input.ContactName,
			ContactEmail:      input.ContactEmail,
			ContactPhone:      input.ContactPhone,
			DeliveryAddress:   input.DeliveryAddress,
			DeliveryPostcode:  input.DeliveryPostcode,
			ExpiresAt:         &expiresAt,
		}
		if _, err := ordersRepo.Create(ctx, order); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return err
		}

		gwPayment, err := s.gateway.CreatePayment(ctx, gateway.CreatePaymentRequest{
			AmountCents: total,
			Currency:    s.currency,
			Description: fmt.Sprintf("Order %s", order.ID),
			OrderID:     order.ID,
			ReturnURL:   s.returnURL,
		})
		if err != nil {
			return err
		}

		payment := &models.Payment{
			OrderID:     order.ID,
			ExternalID:  gwPayment.ID,
			Status:      enums.PaymentStatusPending,
			AmountCents: total,
			PaymentURL:  gwPayment.Confirmation.URL,
		}
		if err := ordersRepo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		if err := carts.UpdateStatus(ctx, record.ID, enums.CartStatusConverted); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				UserID:     userID,
				TotalCents: total,
				ExpiresAt:  expiresAt,
			},
			Version: 1,
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return err
		}

		order.Items = items
		result = &Result{
			Order:           order,
			Payment:         payment,
			ConfirmationURL: gwPayment.Confirmation.URL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// snapshotItems freezes unit prices at checkout time so later price edits
// never change an existing order.
func snapshotItems(cartItems []models.CartItem) ([]models.OrderItem, int, int, error) {
	items := make([]models.OrderItem, 0, len(cartItems))
	subtotal := 0
	weight := 0
	for _, line := range cartItems {
		if line.SKU == nil {
			return nil, 0, 0, pkgerrors.New(pkgerrors.CodeDependency, "cart item missing sku snapshot").
				WithDetails(map[string]any{"sku_id": line.SKUID.String()})
		}
		unitPrice := line.SKU.UnitPriceCents()
		items = append(items, models.OrderItem{
			SKUID:          line.SKUID,
			Title:          line.SKU.Title,
			UnitPriceCents: unitPrice,
			Qty:            line.Qty,
		})
		subtotal += unitPrice * line.Qty
		weight += line.SKU.WeightGrams * line.Qty
	}
	return items, subtotal, weight, nil
}
