package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/pkg/db/models"
	"github.com/phamdt/aurora-backend/pkg/enums"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
	"github.com/phamdt/aurora-backend/pkg/logger"
	"github.com/phamdt/aurora-backend/pkg/outbox"
	"github.com/phamdt/aurora-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubOrderRepo struct {
	orders         map[uuid.UUID]*models.Order
	returns        map[uuid.UUID]*models.ReturnRequest
	statusConflict bool
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders:  map[uuid.UUID]*models.Order{},
		returns: map[uuid.UUID]*models.ReturnRequest{},
	}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrderRepo) FindByIDForCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok || order.CustomerID != customerID {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrderRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	list := &OrderList{}
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			list.Orders = append(list.Orders, *order)
		}
	}
	return list, nil
}

func (s *stubOrderRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list := &OrderList{}
	for _, order := range s.orders {
		if filters.Status != nil && order.Status != *filters.Status {
			continue
		}
		list.Orders = append(list.Orders, *order)
	}
	return list, nil
}

func (s *stubOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	if s.statusConflict {
		return false, nil
	}
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (s *stubOrderRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	if order, ok := s.orders[id]; ok {
		order.PaymentStatus = status
	}
	return nil
}

func (s *stubOrderRepo) CreateReturnRequest(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	request.ID = uuid.New()
	s.returns[request.ID] = request
	return request, nil
}

func (s *stubOrderRepo) FindReturnRequest(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	request, ok := s.returns[id]
	if !ok {
		return nil, nil
	}
	copied := *request
	return &copied, nil
}

func (s *stubOrderRepo) FindOpenReturnRequestByOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	for _, request := range s.returns {
		if request.OrderID == orderID && request.ResolvedAt == nil {
			copied := *request
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubOrderRepo) ResolveReturnRequest(ctx context.Context, id uuid.UUID, approved bool) error {
	if request, ok := s.returns[id]; ok {
		now := time.Now()
		request.Approved = approved
		request.ResolvedAt = &now
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test"})
}

func newTestService(t *testing.T, repo *stubOrderRepo, cashPaidOnDelivery bool) (Service, *stubOutbox) {
	t.Helper()
	sink := &stubOutbox{}
	svc, err := NewService(repo, stubTxRunner{}, sink, testLogger(), nil, cashPaidOnDelivery)
	require.NoError(t, err)
	return svc, sink
}

func seedOrder(repo *stubOrderRepo, status enums.OrderStatus, method enums.PaymentMethod) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		Status:        status,
		PaymentStatus: enums.PaymentStatusUnpaid,
		PaymentMethod: method,
		Total:         250_000,
	}
	repo.orders[order.ID] = order
	return order
}

func TestCustomerCancelPendingOrder(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusPending, enums.PaymentMethodCash)
	svc, sink := newTestService(t, repo, true)

	updated, err := svc.Cancel(context.Background(), order.CustomerID, order.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusCancelled, updated.Status)
	assert.Equal(t, enums.OrderStatusCancelled, repo.orders[order.ID].Status)
	require.Len(t, sink.events, 1)
	assert.Equal(t, enums.EventOrderStatusChanged, sink.events[0].EventType)
}

func TestCustomerCannotCancelShippingOrder(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusShipping, enums.PaymentMethodCash)
	svc, sink := newTestService(t, repo, true)

	_, err := svc.Cancel(context.Background(), order.CustomerID, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, enums.OrderStatusShipping, repo.orders[order.ID].Status)
	assert.Empty(t, sink.events)
}

func TestStaffCanCancelShippingOrder(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusShipping, enums.PaymentMethodCash)
	svc, _ := newTestService(t, repo, true)

	updated, err := svc.UpdateStatus(context.Background(), TransitionInput{
		OrderID:     order.ID,
		To:          enums.OrderStatusCancelled,
		Actor:       enums.ActorRoleStaff,
		ActorUserID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, updated.Status)
}

func TestConfirmDeliveryMarksCashOrderPaid(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusShipping, enums.PaymentMethodCash)
	svc, sink := newTestService(t, repo, true)

	updated, err := svc.ConfirmDelivery(context.Background(), order.CustomerID, order.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusDelivered, updated.Status)
	assert.Equal(t, enums.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, enums.PaymentStatusPaid, repo.orders[order.ID].PaymentStatus)

	require.Len(t, sink.events, 2)
	assert.Equal(t, enums.EventOrderStatusChanged, sink.events[0].EventType)
	assert.Equal(t, enums.EventPaymentCaptured, sink.events[1].EventType)
}

func TestConfirmDeliveryLeavesCashOrderUnpaidWhenPolicyDisabled(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusShipping, enums.PaymentMethodCash)
	svc, sink := newTestService(t, repo, false)

	updated, err := svc.ConfirmDelivery(context.Background(), order.CustomerID, order.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusDelivered, updated.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, updated.PaymentStatus)
	require.Len(t, sink.events, 1)
}

func TestConfirmDeliveryDoesNotTouchGatewayPayment(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusShipping, enums.PaymentMethodVNPay)
	svc, sink := newTestService(t, repo, true)

	updated, err := svc.ConfirmDelivery(context.Background(), order.CustomerID, order.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentStatusUnpaid, updated.PaymentStatus)
	require.Len(t, sink.events, 1)
}

func TestUpdateStatusConcurrentLoserGetsConflict(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusPending, enums.PaymentMethodCash)
	repo.statusConflict = true
	svc, _ := newTestService(t, repo, true)

	_, err := svc.UpdateStatus(context.Background(), TransitionInput{
		OrderID:     order.ID,
		To:          enums.OrderStatusProcessing,
		Actor:       enums.ActorRoleStaff,
		ActorUserID: uuid.New(),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestRequestReturnRequiresDeliveredOrder(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusShipping, enums.PaymentMethodCash)
	svc, _ := newTestService(t, repo, true)

	_, err := svc.RequestReturn(context.Background(), order.CustomerID, order.ID, "damaged on arrival")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestApprovedReturnMovesOrderToReturned(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusDelivered, enums.PaymentMethodCash)
	svc, sink := newTestService(t, repo, true)

	request, err := svc.RequestReturn(context.Background(), order.CustomerID, order.ID, "damaged on arrival")
	require.NoError(t, err)

	resolved, err := svc.ResolveReturn(context.Background(), uuid.New(), request.ID, true)
	require.NoError(t, err)

	assert.True(t, resolved.Approved)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, enums.OrderStatusReturned, repo.orders[order.ID].Status)
	require.Len(t, sink.events, 1)
	assert.Equal(t, enums.EventOrderStatusChanged, sink.events[0].EventType)
}

func TestRejectedReturnLeavesOrderDelivered(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusDelivered, enums.PaymentMethodCash)
	svc, _ := newTestService(t, repo, true)

	request, err := svc.RequestReturn(context.Background(), order.CustomerID, order.ID, "changed my mind")
	require.NoError(t, err)

	resolved, err := svc.ResolveReturn(context.Background(), uuid.New(), request.ID, false)
	require.NoError(t, err)

	assert.False(t, resolved.Approved)
	assert.Equal(t, enums.OrderStatusDelivered, repo.orders[order.ID].Status)
}

func TestSecondOpenReturnRequestRejected(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusDelivered, enums.PaymentMethodCash)
	svc, _ := newTestService(t, repo, true)

	_, err := svc.RequestReturn(context.Background(), order.CustomerID, order.ID, "damaged")
	require.NoError(t, err)

	_, err = svc.RequestReturn(context.Background(), order.CustomerID, order.ID, "still damaged")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestGetRejectsForeignOrder(t *testing.T) {
	repo := newStubOrderRepo()
	order := seedOrder(repo, enums.OrderStatusPending, enums.PaymentMethodCash)
	svc, _ := newTestService(t, repo, true)

	_, err := svc.Get(context.Background(), uuid.New(), order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
