package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/pkg/db/models"
	"github.com/phamdt/aurora-backend/pkg/enums"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
	"github.com/phamdt/aurora-backend/pkg/logger"
	"github.com/phamdt/aurora-backend/pkg/metrics"
	"github.com/phamdt/aurora-backend/pkg/outbox"
	"github.com/phamdt/aurora-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StatusChangedEvent is emitted on every fulfillment transition.
type StatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
	Actor   string            `json:"actor"`
}

// PaymentCapturedEvent is emitted when an order becomes paid.
type PaymentCapturedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Amount        int64               `json:"amount"`
}

// TransitionInput identifies one status change attempt.
type TransitionInput struct {
	OrderID     uuid.UUID
	To          enums.OrderStatus
	Actor       enums.ActorRole
	ActorUserID uuid.UUID
}

// Service defines order reads and fulfillment mutations.
type Service interface {
	List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	ConfirmDelivery(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	RequestReturn(ctx context.Context, customerID, orderID uuid.UUID, reason string) (*models.ReturnRequest, error)

	AdminList(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, input TransitionInput) (*models.Order, error)
	ResolveReturn(ctx context.Context, staffID, requestID uuid.UUID, approve bool) (*models.ReturnRequest, error)
}

type service struct {
	repo            Repository
	tx              txRunner
	outbox          outboxPublisher
	logg            *logger.Logger
	metrics         *metrics.CheckoutMetrics
	cashPaidOnDeliv bool
}

// NewService builds the order fulfillment service.
func NewService(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	logg *logger.Logger,
	checkoutMetrics *metrics.CheckoutMetrics,
	cashPaidOnDelivery bool,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
		repo:            repo,
		tx:              tx,
		outbox:          publisher,
		logg:            logg,
		metrics:         checkoutMetrics,
		cashPaidOnDeliv: cashPaidOnDelivery,
	}, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	list, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return list, nil
}

func (s *service) Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// Cancel is the customer self-cancel path, legal only while the order is
// still pending.
func (s *service) Cancel(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, TransitionInput{
		OrderID:     orderID,
		To:          enums.OrderStatusCancelled,
		Actor:       enums.ActorRoleCustomer,
		ActorUserID: customerID,
	})
}

// ConfirmDelivery lets the customer acknowledge receipt of a shipping order.
func (s *service) ConfirmDelivery(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, TransitionInput{
		OrderID:     orderID,
		To:          enums.OrderStatusDelivered,
		Actor:       enums.ActorRoleCustomer,
		ActorUserID: customerID,
	})
}

func (s *service) RequestReturn(ctx context.Context, customerID, orderID uuid.UUID, reason string) (*models.ReturnRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}

	order, err := s.Get(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	open, err := s.repo.FindOpenReturnRequestByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking return requests")
	}
	if open != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a return request is already open for this order")
	}

	request, err := s.repo.CreateReturnRequest(ctx, &models.ReturnRequest{
		OrderID:    orderID,
		CustomerID: customerID,
		Reason:     reason,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating return request")
	}
	return request, nil
}

func (s *service) AdminList(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return list, nil
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// UpdateStatus is the staff-driven transition path. The delivered to
// returned edge is excluded here; it only happens through ResolveReturn.
func (s *service) UpdateStatus(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	order, err := s.AdminGet(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, input)
}

// ResolveReturn closes a return request. Approval moves the order from
// delivered to returned as a system transition; rejection leaves the order
// untouched either way.
func (s *service) ResolveReturn(ctx context.Context, staffID, requestID uuid.UUID, approve bool) (*models.ReturnRequest, error) {
	request, err := s.repo.FindReturnRequest(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading return request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	if request.ResolvedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "return request already resolved")
	}

	if approve {
		order, err := s.AdminGet(ctx, request.OrderID)
		if err != nil {
			return nil, err
		}
		if _, err := s.transition(ctx, order, TransitionInput{
			OrderID:     request.OrderID,
			To:          enums.OrderStatusReturned,
			Actor:       enums.ActorRoleSystem,
			ActorUserID: staffID,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.repo.ResolveReturnRequest(ctx, requestID, approve); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving return request")
	}
	request.Approved = approve
	now := time.Now()
	request.ResolvedAt = &now
	return request, nil
}

func (s *service) transition(ctx context.Context, order *models.Order, input TransitionInput) (*models.Order, error) {
	from := order.Status
	if err := Authorize(from, input.To, input.Actor); err != nil {
		return nil, err
	}

	extra := map[string]any{}
	now := time.Now()
	switch input.To {
	case enums.OrderStatusCancelled:
		extra["cancelled_at"] = now
	case enums.OrderStatusDelivered:
		extra["delivered_at"] = now
	}

	markCashPaid := input.To == enums.OrderStatusDelivered &&
		order.PaymentMethod == enums.PaymentMethodCash &&
		order.PaymentStatus == enums.PaymentStatusUnpaid &&
		s.cashPaidOnDeliv

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// CAS on the stored status so a concurrent transition loses
		// cleanly instead of overwriting.
		moved, err := repo.UpdateStatus(ctx, order.ID, from, input.To, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
				WithDetails(map[string]any{"from": from.String(), "to": input.To.String()})
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.Actor.String()}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: StatusChangedEvent{
				OrderID: order.ID,
				From:    from,
				To:      input.To,
				Actor:   input.Actor.String(),
			},
			Version: 1,
		}); err != nil {
			return err
		}

		if markCashPaid {
			if err := repo.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusPaid); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking order paid")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentCaptured,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actor,
				Data: PaymentCapturedEvent{
					OrderID:       order.ID,
					PaymentMethod: order.PaymentMethod,
					Amount:        order.Total,
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = input.To
	switch input.To {
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
	}
	if markCashPaid {
		order.PaymentStatus = enums.PaymentStatusPaid
	}

	s.metrics.IncTransition(input.To.String())
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithActorRole(logCtx, input.Actor.String())
	s.logg.Info(logCtx, fmt.Sprintf("order moved from %s to %s", from, input.To))

	return order, nil
}
