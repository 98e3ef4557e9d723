package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamdt/aurora-backend/api/middleware"
	internalorders "github.com/phamdt/aurora-backend/internal/orders"
	"github.com/phamdt/aurora-backend/pkg/db/models"
	"github.com/phamdt/aurora-backend/pkg/enums"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
	"github.com/phamdt/aurora-backend/pkg/pagination"
)

type stubOrdersService struct {
	order         *models.Order
	returnRequest *models.ReturnRequest
	err           error

	cancelCalls  int
	lastCustomer uuid.UUID
	lastOrder    uuid.UUID
	lastReason   string
	lastInput    internalorders.TransitionInput
}

func (s *stubOrdersService) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	if s.err != nil {
		return nil, s.err
	}
	list := &internalorders.OrderList{}
	if s.order != nil {
		list.Orders = []models.Order{*s.order}
	}
	return list, nil
}

func (s *stubOrdersService) Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrdersService) Cancel(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	s.cancelCalls++
	s.lastCustomer = customerID
	s.lastOrder = orderID
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrdersService) ConfirmDelivery(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrdersService) RequestReturn(ctx context.Context, customerID, orderID uuid.UUID, reason string) (*models.ReturnRequest, error) {
	s.lastCustomer = customerID
	s.lastOrder = orderID
	s.lastReason = reason
	if s.err != nil {
		return nil, s.err
	}
	return s.returnRequest, nil
}

func (s *stubOrdersService) AdminList(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
	if s.err != nil {
		return nil, s.err
	}
	list := &internalorders.OrderList{}
	if s.order != nil {
		list.Orders = []models.Order{*s.order}
	}
	return list, nil
}

func (s *stubOrdersService) AdminGet(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error) {
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrdersService) ResolveReturn(ctx context.Context, staffID, requestID uuid.UUID, approve bool) (*models.ReturnRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.returnRequest, nil
}

func authedRequest(method, target, orderID string, body string, userID uuid.UUID) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	rc := chi.NewRouteContext()
	if orderID != "" {
		rc.URLParams.Add("orderId", orderID)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = middleware.WithUserID(ctx, userID.String())
	ctx = middleware.WithRole(ctx, enums.ActorRoleCustomer.String())
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestCancelReturnsUpdatedOrder(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrdersService{order: &models.Order{
		ID:            orderID,
		CustomerID:    customerID,
		Status:        enums.OrderStatusCancelled,
		PaymentStatus: enums.PaymentStatusUnpaid,
		PaymentMethod: enums.PaymentMethodCash,
	}}

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", orderID.String(), "", customerID)
	resp := httptest.NewRecorder()
	Cancel(svc, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, svc.cancelCalls)
	assert.Equal(t, customerID, svc.lastCustomer)
	assert.Equal(t, orderID, svc.lastOrder)

	var payload struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, "cancelled", payload.Data.Status)
}

func TestCancelRejectsMalformedOrderID(t *testing.T) {
	svc := &stubOrdersService{}
	req := authedRequest(http.MethodPost, "/api/v1/orders/not-a-uuid/cancel", "not-a-uuid", "", uuid.New())
	resp := httptest.NewRecorder()
	Cancel(svc, nil)(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 0, svc.cancelCalls)
}

func TestCancelSurfacesStateConflict(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "invalid order transition")}
	orderID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", orderID.String(), "", uuid.New())
	resp := httptest.NewRecorder()
	Cancel(svc, nil)(resp, req)

	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), decodeError(t, resp))
}

func TestRequestReturnRequiresReason(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/return-request", orderID.String(), `{}`, uuid.New())
	resp := httptest.NewRecorder()
	RequestReturn(svc, nil)(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.lastReason)
}

func TestRequestReturnCreatesRequest(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrdersService{returnRequest: &models.ReturnRequest{
		ID:      uuid.New(),
		OrderID: orderID,
		Reason:  "damaged on arrival",
	}}

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/return-request", orderID.String(), `{"reason":"damaged on arrival"}`, customerID)
	resp := httptest.NewRecorder()
	RequestReturn(svc, nil)(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "damaged on arrival", svc.lastReason)
}

func TestAdminUpdateStatusParsesTransition(t *testing.T) {
	staffID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrdersService{order: &models.Order{
		ID:            orderID,
		Status:        enums.OrderStatusProcessing,
		PaymentStatus: enums.PaymentStatusUnpaid,
		PaymentMethod: enums.PaymentMethodCash,
	}}

	req := authedRequest(http.MethodPatch, "/api/admin/v1/orders/"+orderID.String()+"/status", orderID.String(), `{"status":"processing"}`, staffID)
	resp := httptest.NewRecorder()
	AdminUpdateStatus(svc, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.OrderStatusProcessing, svc.lastInput.To)
	assert.Equal(t, enums.ActorRoleStaff, svc.lastInput.Actor)
	assert.Equal(t, staffID, svc.lastInput.ActorUserID)
}

func TestAdminUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()
	req := authedRequest(http.MethodPatch, "/api/admin/v1/orders/"+orderID.String()+"/status", orderID.String(), `{"status":"teleported"}`, uuid.New())
	resp := httptest.NewRecorder()
	AdminUpdateStatus(svc, nil)(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}
