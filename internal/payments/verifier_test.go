package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/internal/orders"
	"github.com/phamdt/aurora-backend/internal/payments/vnpay"
	"github.com/phamdt/aurora-backend/pkg/config"
	"github.com/phamdt/aurora-backend/pkg/db/models"
	"github.com/phamdt/aurora-backend/pkg/enums"
	"github.com/phamdt/aurora-backend/pkg/logger"
	"github.com/phamdt/aurora-backend/pkg/outbox"
	"github.com/phamdt/aurora-backend/pkg/pagination"
)

const testSecret = "verifier-test-secret"

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type gormTxRunner struct {
	conn *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// A single connection keeps concurrent transactions from tripping
	// over sqlite's single-writer lock.
	sqlDB.SetMaxOpenConns(1)

	schema := `
CREATE TABLE IF NOT EXISTS payment_transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  txn_ref TEXT NOT NULL UNIQUE,
  amount INTEGER NOT NULL,
  response_code TEXT,
  bank_code TEXT,
  verified BOOLEAN NOT NULL DEFAULT FALSE,
  success BOOLEAN NOT NULL DEFAULT FALSE,
  message TEXT,
  verified_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubLocks struct {
	held map[string]bool
}

func (s *stubLocks) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.held == nil {
		s.held = map[string]bool{}
	}
	if s.held[key] {
		return false, nil
	}
	s.held[key] = true
	return true, nil
}

func (s *stubLocks) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.held, key)
	}
	return nil
}

func (s *stubLocks) VerificationLockKey(txnRef string) string {
	return "lock:" + txnRef
}

type stubPaymentsRepo struct {
	byRef       map[string]*models.PaymentTransaction
	loseTheRace bool
}

func newStubPaymentsRepo() *stubPaymentsRepo {
	return &stubPaymentsRepo{byRef: map[string]*models.PaymentTransaction{}}
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPaymentsRepo) Create(ctx context.Context, txn *models.PaymentTransaction) (*models.PaymentTransaction, error) {
	txn.ID = uuid.New()
	s.byRef[txn.TxnRef] = txn
	return txn, nil
}

func (s *stubPaymentsRepo) FindByTxnRef(ctx context.Context, txnRef string) (*models.PaymentTransaction, error) {
	txn, ok := s.byRef[txnRef]
	if !ok {
		return nil, nil
	}
	copied := *txn
	return &copied, nil
}

func (s *stubPaymentsRepo) MarkVerified(ctx context.Context, id uuid.UUID, update VerificationUpdate) (bool, error) {
	for _, txn := range s.byRef {
		if txn.ID != id {
			continue
		}
		if txn.Verified {
			return false, nil
		}
		if s.loseTheRace {
			// Simulates a concurrent callback committing first.
			txn.Verified = true
			txn.Success = true
			txn.ResponseCode = "00"
			txn.Message = "payment captured"
			return false, nil
		}
		now := time.Now()
		txn.Verified = true
		txn.Success = update.Success
		txn.ResponseCode = update.ResponseCode
		txn.BankCode = update.BankCode
		txn.Message = update.Message
		txn.VerifiedAt = &now
		return true, nil
	}
	return false, nil
}

func (s *stubPaymentsRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	rows := []models.PaymentTransaction{}
	for _, txn := range s.byRef {
		if txn.OrderID == orderID {
			rows = append(rows, *txn)
		}
	}
	return rows, nil
}

type stubOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrdersRepo) FindByIDForCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrdersRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrdersRepo) List(ctx context.Context, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (s *stubOrdersRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	if order, ok := s.orders[id]; ok {
		order.PaymentStatus = status
	}
	return nil
}

func (s *stubOrdersRepo) CreateReturnRequest(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	return request, nil
}

func (s *stubOrdersRepo) FindReturnRequest(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *stubOrdersRepo) FindOpenReturnRequestByOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *stubOrdersRepo) ResolveReturnRequest(ctx context.Context, id uuid.UUID, approved bool) error {
	return nil
}

func testGateway(t *testing.T) *vnpay.Gateway {
	t.Helper()
	gw, err := vnpay.New(config.VNPayConfig{
		TmnCode:      "AURORA01",
		HashSecret:   testSecret,
		PayURL:       "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:    "https://shop.example.com/payments/vnpay/return",
		Version:      "2.1.0",
		ExpireIn:     15 * time.Minute,
		ExpiredCodes: []string{"11", "15"},
	})
	require.NoError(t, err)
	return gw
}

func signParams(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(values.Get(key)))
	}
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

func signedReturn(txnRef string, amount int64, responseCode string) url.Values {
	values := url.Values{}
	values.Set("vnp_TxnRef", txnRef)
	values.Set("vnp_Amount", formatAmount(amount))
	values.Set("vnp_ResponseCode", responseCode)
	values.Set("vnp_TransactionStatus", responseCode)
	values.Set("vnp_BankCode", "NCB")
	values.Set("vnp_SecureHash", signParams(values))
	return values
}

func formatAmount(amount int64) string {
	return strconv.FormatInt(amount*100, 10)
}

type fixture struct {
	verifier   Verifier
	repo       *stubPaymentsRepo
	ordersRepo *stubOrdersRepo
	sink       *stubOutbox
	order      *models.Order
	txnRef     string
}

func newFixture(t *testing.T, autoAdvance bool) *fixture {
	t.Helper()
	repo := newStubPaymentsRepo()
	ordersRepo := newStubOrdersRepo()
	sink := &stubOutbox{}

	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		PaymentMethod: enums.PaymentMethodVNPay,
		Total:         800_000,
	}
	ordersRepo.orders[order.ID] = order

	txnRef := NewTxnRef()
	_, err := repo.Create(context.Background(), &models.PaymentTransaction{
		OrderID: order.ID,
		TxnRef:  txnRef,
		Amount:  order.Total,
	})
	require.NoError(t, err)

	v, err := NewVerifier(
		repo,
		ordersRepo,
		testGateway(t),
		stubTxRunner{},
		sink,
		&stubLocks{},
		logger.New(logger.Options{ServiceName: "payments-test"}),
		nil,
		autoAdvance,
		time.Second,
	)
	require.NoError(t, err)

	return &fixture{
		verifier:   v,
		repo:       repo,
		ordersRepo: ordersRepo,
		sink:       sink,
		order:      order,
		txnRef:     txnRef,
	}
}

func TestVerifyReturnSuccessMarksPaidAndAdvances(t *testing.T) {
	f := newFixture(t, true)

	result, err := f.verifier.VerifyReturn(context.Background(), signedReturn(f.txnRef, f.order.Total, "00"))
	require.NoError(t, err)

	assert.True(t, result.IsVerified)
	assert.True(t, result.IsSuccess)
	assert.Equal(t, f.order.ID, result.OrderID)

	stored := f.ordersRepo.orders[f.order.ID]
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)

	require.Len(t, f.sink.events, 2)
	assert.Equal(t, enums.EventPaymentCaptured, f.sink.events[0].EventType)
	assert.Equal(t, enums.EventOrderStatusChanged, f.sink.events[1].EventType)
}

func TestVerifyReturnSuccessWithoutAutoAdvance(t *testing.T) {
	f := newFixture(t, false)

	result, err := f.verifier.VerifyReturn(context.Background(), signedReturn(f.txnRef, f.order.Total, "00"))
	require.NoError(t, err)

	assert.True(t, result.IsSuccess)
	stored := f.ordersRepo.orders[f.order.ID]
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	require.Len(t, f.sink.events, 1)
}

func TestVerifyReturnRepeatedCallIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	params := signedReturn(f.txnRef, f.order.Total, "00")

	first, err := f.verifier.VerifyReturn(context.Background(), params)
	require.NoError(t, err)
	second, err := f.verifier.VerifyReturn(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.IsVerified, second.IsVerified)
	assert.Equal(t, first.IsSuccess, second.IsSuccess)

	// Side effects applied exactly once across both calls.
	require.Len(t, f.sink.events, 2)
	assert.Equal(t, enums.PaymentStatusPaid, f.ordersRepo.orders[f.order.ID].PaymentStatus)
}

func TestVerifyReturnConcurrentLoserReadsWinnerResult(t *testing.T) {
	f := newFixture(t, true)
	f.repo.loseTheRace = true

	result, err := f.verifier.VerifyReturn(context.Background(), signedReturn(f.txnRef, f.order.Total, "00"))
	require.NoError(t, err)

	assert.True(t, result.IsVerified)
	assert.True(t, result.IsSuccess)
	// The loser applied no side effects of its own.
	assert.Empty(t, f.sink.events)
	assert.Equal(t, enums.PaymentStatusUnpaid, f.ordersRepo.orders[f.order.ID].PaymentStatus)
}

func TestVerifyReturnConcurrentCallbacksApplySideEffectsOnce(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	repo := NewRepository(conn)
	ordersRepo := newStubOrdersRepo()
	sink := &stubOutbox{}

	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		PaymentMethod: enums.PaymentMethodVNPay,
		Total:         800_000,
	}
	ordersRepo.orders[order.ID] = order

	txnRef := NewTxnRef()
	_, err := repo.Create(context.Background(), &models.PaymentTransaction{
		ID:      uuid.New(),
		OrderID: order.ID,
		TxnRef:  txnRef,
		Amount:  order.Total,
	})
	require.NoError(t, err)

	v, err := NewVerifier(
		repo,
		ordersRepo,
		testGateway(t),
		gormTxRunner{conn: conn},
		sink,
		nil,
		logger.New(logger.Options{ServiceName: "payments-test"}),
		nil,
		false,
		time.Second,
	)
	require.NoError(t, err)

	results := make(chan *Result, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := v.VerifyReturn(context.Background(), signedReturn(txnRef, order.Total, "00"))
			assert.NoError(t, err)
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	for result := range results {
		require.NotNil(t, result)
		assert.True(t, result.IsVerified)
		assert.True(t, result.IsSuccess)
		assert.Equal(t, order.ID, result.OrderID)
	}

	// Whichever callback lost still reported success, but only the
	// winner touched the order and the outbox.
	require.Len(t, sink.events, 1)
	assert.Equal(t, enums.EventPaymentCaptured, sink.events[0].EventType)
	assert.Equal(t, enums.PaymentStatusPaid, ordersRepo.orders[order.ID].PaymentStatus)

	stored, err := repo.FindByTxnRef(context.Background(), txnRef)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Verified)
	assert.True(t, stored.Success)
}

func TestVerifyReturnUserCancelledLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t, true)

	result, err := f.verifier.VerifyReturn(context.Background(), signedReturn(f.txnRef, f.order.Total, "24"))
	require.NoError(t, err)

	assert.True(t, result.IsVerified)
	assert.False(t, result.IsSuccess)
	assert.False(t, result.Expired)

	stored := f.ordersRepo.orders[f.order.ID]
	assert.Equal(t, enums.PaymentStatusUnpaid, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, enums.EventPaymentFailed, f.sink.events[0].EventType)
}

func TestVerifyReturnExpiredCodeIsFlagged(t *testing.T) {
	f := newFixture(t, true)

	result, err := f.verifier.VerifyReturn(context.Background(), signedReturn(f.txnRef, f.order.Total, "11"))
	require.NoError(t, err)

	assert.True(t, result.IsVerified)
	assert.False(t, result.IsSuccess)
	assert.True(t, result.Expired)
	assert.Equal(t, enums.PaymentStatusUnpaid, f.ordersRepo.orders[f.order.ID].PaymentStatus)
}

func TestVerifyReturnRejectsBadSignature(t *testing.T) {
	f := newFixture(t, true)

	values := signedReturn(f.txnRef, f.order.Total, "00")
	values.Set("vnp_Amount", "999900")

	result, err := f.verifier.VerifyReturn(context.Background(), values)
	require.NoError(t, err)

	assert.False(t, result.IsVerified)
	assert.Empty(t, f.sink.events)
	assert.False(t, f.repo.byRef[f.txnRef].Verified)
}

func TestVerifyReturnUnknownReference(t *testing.T) {
	f := newFixture(t, true)

	result, err := f.verifier.VerifyReturn(context.Background(), signedReturn("NO-SUCH-REF", 1_000, "00"))
	require.NoError(t, err)

	assert.False(t, result.IsVerified)
	assert.Empty(t, f.sink.events)
}

func TestVerifyReturnAmountMismatchRecordedAsFailure(t *testing.T) {
	f := newFixture(t, true)

	result, err := f.verifier.VerifyReturn(context.Background(), signedReturn(f.txnRef, f.order.Total+5_000, "00"))
	require.NoError(t, err)

	assert.True(t, result.IsVerified)
	assert.False(t, result.IsSuccess)
	assert.Equal(t, enums.PaymentStatusUnpaid, f.ordersRepo.orders[f.order.ID].PaymentStatus)
	assert.True(t, f.repo.byRef[f.txnRef].Verified)
}

func TestVerifyReturnAmountMismatchIsNeverExpired(t *testing.T) {
	f := newFixture(t, true)
	params := signedReturn(f.txnRef, f.order.Total+5_000, "11")

	result, err := f.verifier.VerifyReturn(context.Background(), params)
	require.NoError(t, err)

	assert.True(t, result.IsVerified)
	assert.False(t, result.IsSuccess)
	// The session did not time out; the callback carried the wrong
	// amount, even though "11" is an expired-class code.
	assert.False(t, result.Expired)

	replayed, err := f.verifier.VerifyReturn(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, replayed.Expired)
	assert.Equal(t, result.Message, replayed.Message)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, enums.EventPaymentFailed, f.sink.events[0].EventType)
}

func TestNewTxnRefIsUniqueAndShort(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref := NewTxnRef()
		assert.Len(t, ref, 20)
		assert.False(t, seen[ref])
		seen[ref] = true
	}
}
