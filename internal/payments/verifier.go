package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/internal/orders"
	"github.com/phamdt/aurora-backend/internal/payments/vnpay"
	"github.com/phamdt/aurora-backend/pkg/db/models"
	"github.com/phamdt/aurora-backend/pkg/enums"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
	"github.com/phamdt/aurora-backend/pkg/logger"
	"github.com/phamdt/aurora-backend/pkg/metrics"
	"github.com/phamdt/aurora-backend/pkg/outbox"
)

const (
	msgCaptured     = "payment captured"
	msgDeclined     = "payment declined"
	msgExpired      = "payment session expired, start a new payment to retry"
	msgBadSignature = "invalid gateway signature"
	msgUnknownRef   = "unknown transaction reference"
	msgBadAmount    = "callback amount does not match the order"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// lockStore serializes verification per transaction reference. It is a
// latency optimization on top of the conditional write, not the
// correctness boundary.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	VerificationLockKey(txnRef string) string
}

// Result is the outcome of one verification call. Identical inputs always
// produce identical results; side effects happen at most once per
// transaction reference.
type Result struct {
	IsVerified bool      `json:"is_verified"`
	IsSuccess  bool      `json:"is_success"`
	Expired    bool      `json:"expired"`
	Message    string    `json:"message"`
	TxnRef     string    `json:"txn_ref,omitempty"`
	OrderID    uuid.UUID `json:"order_id,omitempty"`
}

// PaymentFailedEvent is emitted once per declined or expired verification.
type PaymentFailedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	TxnRef       string    `json:"txn_ref"`
	ResponseCode string    `json:"response_code"`
	Expired      bool      `json:"expired"`
}

// Verifier handles the gateway return callback.
type Verifier interface {
	VerifyReturn(ctx context.Context, params url.Values) (*Result, error)
}

type verifier struct {
	repo        Repository
	ordersRepo  orders.Repository
	gateway     *vnpay.Gateway
	tx          txRunner
	outbox      outboxPublisher
	locks       lockStore
	logg        *logger.Logger
	metrics     *metrics.CheckoutMetrics
	autoAdvance bool
	lockTTL     time.Duration
}

// NewVerifier builds the payment return verifier.
func NewVerifier(
	repo Repository,
	ordersRepo orders.Repository,
	gateway *vnpay.Gateway,
	tx txRunner,
	publisher outboxPublisher,
	locks lockStore,
	logg *logger.Logger,
	checkoutMetrics *metrics.CheckoutMetrics,
	autoAdvanceOnPayment bool,
	lockTTL time.Duration,
) (Verifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &verifier{
		repo:        repo,
		ordersRepo:  ordersRepo,
		gateway:     gateway,
		tx:          tx,
		outbox:      publisher,
		locks:       locks,
		logg:        logg,
		metrics:     checkoutMetrics,
		autoAdvance: autoAdvanceOnPayment,
		lockTTL:     lockTTL,
	}, nil
}

// VerifyReturn checks the callback signature, interprets the response code
// and applies payment side effects exactly once per transaction reference.
// The browser can replay the return URL arbitrarily many times; every call
// after the first reads the stored result instead of re-deriving it.
func (v *verifier) VerifyReturn(ctx context.Context, params url.Values) (*Result, error) {
	ret := v.gateway.ParseReturn(params)
	if !ret.SignatureValid {
		v.metrics.IncVerification("invalid_signature")
		return &Result{IsVerified: false, Message: msgBadSignature, TxnRef: ret.TxnRef}, nil
	}

	ctx = v.logg.WithTxnRef(ctx, ret.TxnRef)

	// Short-lived per-reference lock so near-simultaneous callbacks
	// usually serialize before hitting the database. Losing the lock is
	// fine: the conditional write below is the authoritative guard.
	if v.locks != nil {
		key := v.locks.VerificationLockKey(ret.TxnRef)
		if acquired, err := v.locks.SetNX(ctx, key, "1", v.lockTTL); err == nil && acquired {
			defer func() { _ = v.locks.Del(context.WithoutCancel(ctx), key) }()
		}
	}

	var result *Result
	err := v.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := v.repo.WithTx(tx)

		txn, err := repo.FindByTxnRef(ctx, ret.TxnRef)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment transaction")
		}
		if txn == nil {
			result = &Result{IsVerified: false, Message: msgUnknownRef, TxnRef: ret.TxnRef}
			return nil
		}

		if txn.Verified {
			result = cachedResult(txn)
			return nil
		}

		update := v.interpret(ret, txn.Amount)
		marked, err := repo.MarkVerified(ctx, txn.ID, update)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording verification")
		}
		if !marked {
			// A concurrent callback won the conditional write. Read its
			// result back; the end user never sees a conflict.
			winner, err := repo.FindByTxnRef(ctx, ret.TxnRef)
			if err != nil || winner == nil || !winner.Verified {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading concurrent verification")
			}
			result = cachedResult(winner)
			return nil
		}

		result = &Result{
			IsVerified: true,
			IsSuccess:  update.Success,
			Expired:    update.Expired,
			Message:    update.Message,
			TxnRef:     txn.TxnRef,
			OrderID:    txn.OrderID,
		}

		if update.Success {
			return v.applyCapture(ctx, tx, txn.OrderID, txn.Amount)
		}
		return v.recordFailure(ctx, tx, txn.OrderID, txn.TxnRef, update.ResponseCode, result.Expired)
	})
	if err != nil {
		return nil, err
	}

	v.metrics.IncVerification(verificationLabel(result))
	v.logg.Info(ctx, "payment return verified: "+result.Message)
	return result, nil
}

// interpret turns parsed callback fields into the stored verification
// record. Amount mismatches are recorded as failed verifications so
// replays of the same tampered URL stay cheap.
func (v *verifier) interpret(ret vnpay.Return, expectedAmount int64) VerificationUpdate {
	var bankCode *string
	if ret.BankCode != "" {
		code := ret.BankCode
		bankCode = &code
	}
	update := VerificationUpdate{
		ResponseCode: ret.ResponseCode,
		BankCode:     bankCode,
	}

	if ret.Amount != expectedAmount {
		update.Message = msgBadAmount
		return update
	}

	switch v.gateway.Outcome(ret.ResponseCode) {
	case vnpay.OutcomeSuccess:
		update.Success = ret.TransactionStatus == vnpay.ResponseCodeSuccess || ret.TransactionStatus == ""
		if update.Success {
			update.Message = msgCaptured
		} else {
			update.Message = msgDeclined
		}
	case vnpay.OutcomeExpired:
		update.Expired = true
		update.Message = msgExpired
	default:
		update.Message = msgDeclined
	}
	return update
}

func (v *verifier) applyCapture(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount int64) error {
	ordersRepo := v.ordersRepo.WithTx(tx)
	order, err := ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "payment transaction references a missing order")
	}

	if order.PaymentStatus == enums.PaymentStatusUnpaid {
		if err := ordersRepo.UpdatePaymentStatus(ctx, orderID, enums.PaymentStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking order paid")
		}
		if err := v.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCaptured,
			AggregateType: enums.AggregatePaymentTransaction,
			AggregateID:   orderID,
			Data: orders.PaymentCapturedEvent{
				OrderID:       orderID,
				PaymentMethod: order.PaymentMethod,
				Amount:        amount,
			},
			Version: 1,
		}); err != nil {
			return err
		}
	}

	if v.autoAdvance && order.Status == enums.OrderStatusPending {
		if err := orders.Authorize(order.Status, enums.OrderStatusProcessing, enums.ActorRoleSystem); err != nil {
			return err
		}
		moved, err := ordersRepo.UpdateStatus(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusProcessing, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advancing order")
		}
		if moved {
			v.metrics.IncTransition(enums.OrderStatusProcessing.String())
			if err := v.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Data: orders.StatusChangedEvent{
					OrderID: orderID,
					From:    enums.OrderStatusPending,
					To:      enums.OrderStatusProcessing,
					Actor:   enums.ActorRoleSystem.String(),
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordFailure emits the failed-payment event. The order itself stays
// unpaid so the customer can start a fresh payment attempt.
func (v *verifier) recordFailure(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, txnRef, responseCode string, expired bool) error {
	return v.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePaymentTransaction,
		AggregateID:   orderID,
		Data: PaymentFailedEvent{
			OrderID:      orderID,
			TxnRef:       txnRef,
			ResponseCode: responseCode,
			Expired:      expired,
		},
		Version: 1,
	})
}

// cachedResult rebuilds the reply for a reference that was already
// verified. The stored message is the source of truth for the expired
// flag; the response code alone cannot tell an expired session from an
// amount mismatch that carried the same code.
func cachedResult(txn *models.PaymentTransaction) *Result {
	return &Result{
		IsVerified: true,
		IsSuccess:  txn.Success,
		Expired:    !txn.Success && txn.Message == msgExpired,
		Message:    txn.Message,
		TxnRef:     txn.TxnRef,
		OrderID:    txn.OrderID,
	}
}

func verificationLabel(result *Result) string {
	switch {
	case !result.IsVerified:
		return "invalid"
	case result.IsSuccess:
		return "success"
	case result.Expired:
		return "expired"
	default:
		return "declined"
	}
}

// NewTxnRef issues a fresh gateway transaction reference. Each payment
// attempt gets its own reference; retries never reuse one.
func NewTxnRef() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}
