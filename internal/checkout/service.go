package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/internal/addresses"
	"github.com/phamdt/aurora-backend/internal/cart"
	"github.com/phamdt/aurora-backend/internal/discounts"
	"github.com/phamdt/aurora-backend/internal/orders"
	"github.com/phamdt/aurora-backend/internal/payments"
	"github.com/phamdt/aurora-backend/internal/payments/vnpay"
	"github.com/phamdt/aurora-backend/internal/pricing"
	"github.com/phamdt/aurora-backend/pkg/config"
	"github.com/phamdt/aurora-backend/pkg/db/models"
	"github.com/phamdt/aurora-backend/pkg/enums"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
	"github.com/phamdt/aurora-backend/pkg/logger"
	"github.com/phamdt/aurora-backend/pkg/metrics"
	"github.com/phamdt/aurora-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type singleFlightStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	SingleFlightKey(customerID string) string
}

// SubmitInput is one checkout attempt.
type SubmitInput struct {
	CustomerID    uuid.UUID
	PaymentMethod enums.PaymentMethod
	Address       addresses.ResolveInput
	DiscountCode  string
	Note          string
	ClientIP      string
}

// SubmitResult carries the created order plus, for gateway payments, the
// redirect URL the browser must follow.
type SubmitResult struct {
	Order      *models.Order
	PaymentURL string
	// DiscountDropped reports that the coupon was valid but the cart was
	// below its minimum; checkout proceeded at full price.
	DiscountDropped bool
}

// Quote is the pre-submission totals preview.
type Quote struct {
	Subtotal        int64
	DiscountAmount  int64
	Total           int64
	DiscountDropped bool
}

// OrderCreatedEvent is emitted once per accepted checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Total         int64               `json:"total"`
}

// Service coordinates address resolution, pricing and order creation.
type Service interface {
	Quote(ctx context.Context, customerID uuid.UUID, discountCode string) (*Quote, error)
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
	Repayment(ctx context.Context, customerID, orderID uuid.UUID, clientIP string) (*SubmitResult, error)
}

type service struct {
	cartSvc      cart.Service
	cartRepo     cart.Repository
	addressSvc   addresses.Service
	discountSvc  discounts.Service
	ordersRepo   orders.Repository
	paymentsRepo payments.Repository
	gateway      *vnpay.Gateway
	tx           txRunner
	outbox       outboxPublisher
	flights      singleFlightStore
	logg         *logger.Logger
	metrics      *metrics.CheckoutMetrics
	cfg          config.CheckoutConfig
}

// NewService builds the checkout coordinator.
func NewService(
	cartSvc cart.Service,
	cartRepo cart.Repository,
	addressSvc addresses.Service,
	discountSvc discounts.Service,
	ordersRepo orders.Repository,
	paymentsRepo payments.Repository,
	gateway *vnpay.Gateway,
	tx txRunner,
	publisher outboxPublisher,
	flights singleFlightStore,
	logg *logger.Logger,
	checkoutMetrics *metrics.CheckoutMetrics,
	cfg config.CheckoutConfig,
) (Service, error) {
	if cartSvc == nil || cartRepo == nil {
		return nil, fmt.Errorf("cart service and repository required")
	}
	if addressSvc == nil {
		return nil, fmt.Errorf("address service required")
	}
	if discountSvc == nil {
		return nil, fmt.Errorf("discount service required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if paymentsRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		cartSvc:      cartSvc,
		cartRepo:     cartRepo,
		addressSvc:   addressSvc,
		discountSvc:  discountSvc,
		ordersRepo:   ordersRepo,
		paymentsRepo: paymentsRepo,
		gateway:      gateway,
		tx:           tx,
		outbox:       publisher,
		flights:      flights,
		logg:         logg,
		metrics:      checkoutMetrics,
		cfg:          cfg,
	}, nil
}

// Quote prices the current cart with the optional coupon. It runs the same
// pure pricing function Submit does, so the preview always matches the
// amount the order is created with.
func (s *service) Quote(ctx context.Context, customerID uuid.UUID, discountCode string) (*Quote, error) {
	snapshot, err := s.cartSvc.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	descriptor, _, err := s.lookupDiscount(ctx, discountCode)
	if err != nil {
		return nil, err
	}

	totals := pricing.ComputeTotals(snapshot.Lines(), descriptor)
	return &Quote{
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.DiscountAmount,
		Total:           totals.Total,
		DiscountDropped: totals.Violation != "",
	}, nil
}

// Submit converts the cart into an order. All steps complete inside one
// transaction or no order exists at all.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	started := time.Now()
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}

	ctx = s.logg.WithCustomerID(ctx, input.CustomerID.String())

	// Suppress double submission (double-click, impatient refresh) while
	// an order-creation call is in flight for this customer.
	if s.flights != nil {
		key := s.flights.SingleFlightKey(input.CustomerID.String())
		acquired, err := s.flights.SetNX(ctx, key, "1", s.cfg.SingleFlightTTL)
		if err == nil && !acquired {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a checkout is already in progress")
		}
		if err == nil {
			defer func() { _ = s.flights.Del(context.WithoutCancel(ctx), key) }()
		}
	}

	snapshot, err := s.cartSvc.Get(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	descriptor, code, err := s.lookupDiscount(ctx, input.DiscountCode)
	if err != nil {
		return nil, err
	}

	// Always recompute server-side; a client-cached total is never
	// trusted.
	totals := pricing.ComputeTotals(snapshot.Lines(), descriptor)
	discountDropped := totals.Violation != ""
	if discountDropped {
		code = nil
	}

	var (
		order  *models.Order
		txnRef string
	)
	// The customer closing the tab must not abort a half-created order.
	// Once writing starts, the transaction runs detached from the
	// request's cancellation and either commits fully or rolls back on
	// its own failure.
	txCtx := context.WithoutCancel(ctx)
	err = s.tx.WithTx(txCtx, func(tx *gorm.DB) error {
		address, err := s.addressSvc.Resolve(txCtx, tx, input.CustomerID, input.Address)
		if err != nil {
			return err
		}

		order = buildOrder(input, snapshot, totals, code, address)
		if _, err := s.ordersRepo.WithTx(tx).Create(txCtx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order")
		}

		if input.PaymentMethod.RequiresGateway() {
			txnRef = payments.NewTxnRef()
			if _, err := s.paymentsRepo.WithTx(tx).Create(txCtx, &models.PaymentTransaction{
				OrderID: order.ID,
				TxnRef:  txnRef,
				Amount:  order.Total,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating payment transaction")
			}
		}

		if err := s.cartRepo.WithTx(tx).Clear(txCtx, input.CustomerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart")
		}

		return s.outbox.Emit(txCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: enums.ActorRoleCustomer.String()},
			Data: OrderCreatedEvent{
				OrderID:       order.ID,
				CustomerID:    input.CustomerID,
				PaymentMethod: input.PaymentMethod,
				Total:         order.Total,
			},
			Version: 1,
		})
	})
	if err != nil {
		s.metrics.ObserveCheckout(input.PaymentMethod.String(), "error", time.Since(started))
		return nil, err
	}

	result := &SubmitResult{Order: order, DiscountDropped: discountDropped}
	if input.PaymentMethod.RequiresGateway() {
		payURL, err := s.gateway.BuildPayURL(vnpay.PayRequest{
			TxnRef:    txnRef,
			Amount:    order.Total,
			IPAddr:    input.ClientIP,
			CreatedAt: order.CreatedAt,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building payment url")
		}
		result.PaymentURL = payURL
	}

	s.metrics.ObserveCheckout(input.PaymentMethod.String(), "accepted", time.Since(started))
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created")
	return result, nil
}

// Repayment issues a fresh gateway transaction for an order whose previous
// attempt failed or expired. References are never reused across attempts.
func (s *service) Repayment(ctx context.Context, customerID, orderID uuid.UUID, clientIP string) (*SubmitResult, error) {
	order, err := s.ordersRepo.FindByIDForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.PaymentMethod.RequiresGateway() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not gateway paid")
	}
	if order.PaymentStatus != enums.PaymentStatusUnpaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus.String()})
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	txnRef := payments.NewTxnRef()
	if _, err := s.paymentsRepo.Create(ctx, &models.PaymentTransaction{
		OrderID: order.ID,
		TxnRef:  txnRef,
		Amount:  order.Total,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating payment transaction")
	}

	payURL, err := s.gateway.BuildPayURL(vnpay.PayRequest{
		TxnRef: txnRef,
		Amount: order.Total,
		IPAddr: clientIP,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building payment url")
	}
	return &SubmitResult{Order: order, PaymentURL: payURL}, nil
}

func (s *service) lookupDiscount(ctx context.Context, rawCode string) (*pricing.Descriptor, *string, error) {
	code := strings.TrimSpace(rawCode)
	if code == "" {
		return nil, nil, nil
	}
	descriptor, err := s.discountSvc.Lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	return descriptor, &descriptor.Code, nil
}

func buildOrder(
	input SubmitInput,
	snapshot *cart.Snapshot,
	totals pricing.Totals,
	code *string,
	address *models.Address,
) *models.Order {
	items := make([]models.OrderItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		price := pricing.EffectivePrice(pricing.Line{
			UnitPrice: item.UnitPrice,
			SalePrice: item.SalePrice,
			Qty:       item.Qty,
		})
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   price,
			Qty:         item.Qty,
			LineTotal:   price * int64(item.Qty),
		})
	}

	var note *string
	if trimmed := strings.TrimSpace(input.Note); trimmed != "" {
		note = &trimmed
	}

	return &models.Order{
		CustomerID:     input.CustomerID,
		Status:         enums.OrderStatusPending,
		PaymentStatus:  enums.PaymentStatusUnpaid,
		PaymentMethod:  input.PaymentMethod,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		Total:          totals.Total,
		DiscountCode:   code,
		Note:           note,
		ShipFullName:   address.FullName,
		ShipPhone:      address.Phone,
		ShipStreet:     address.Street,
		ShipWard:       address.Ward,
		ShipDistrict:   address.District,
		ShipCity:       address.City,
		Items:          items,
	}
}
