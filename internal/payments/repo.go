package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/pkg/db/models"
)

// VerificationUpdate is the terminal record of one verification attempt.
type VerificationUpdate struct {
	Success      bool
	ResponseCode string
	BankCode     *string
	Message      string
	// Expired distinguishes a timed-out gateway session from any other
	// failure. An amount mismatch is never expired, whatever response
	// code rides along with it.
	Expired bool
}

// Repository defines persistence operations for payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.PaymentTransaction) (*models.PaymentTransaction, error)
	FindByTxnRef(ctx context.Context, txnRef string) (*models.PaymentTransaction, error)
	MarkVerified(ctx context.Context, id uuid.UUID, update VerificationUpdate) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.PaymentTransaction) (*models.PaymentTransaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) FindByTxnRef(ctx context.Context, txnRef string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).Where("txn_ref = ?", txnRef).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// MarkVerified records the verification result with a conditional write.
// The verified flag only ever flips false to true, so of two concurrent
// attempts exactly one reports true here; the loser re-reads the row.
func (r *repository) MarkVerified(ctx context.Context, id uuid.UUID, update VerificationUpdate) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND verified = false", id).
		Updates(map[string]any{
			"verified":      true,
			"success":       update.Success,
			"response_code": update.ResponseCode,
			"bank_code":     update.BankCode,
			"message":       update.Message,
			"verified_at":   time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
