package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentTransaction records one gateway payment attempt for an order. The
// unique txn_ref constraint is the durable idempotency guard: the verifier
// inserts the verification result if absent, and every later callback for
// the same reference reads this row instead of re-applying side effects.
type PaymentTransaction struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	TxnRef       string     `gorm:"column:txn_ref;uniqueIndex:ux_payment_transactions_txn_ref;not null"`
	Amount       int64      `gorm:"column:amount;not null"`
	ResponseCode string     `gorm:"column:response_code"`
	BankCode     *string    `gorm:"column:bank_code"`
	Verified     bool       `gorm:"column:verified;not null;default:false"`
	Success      bool       `gorm:"column:success;not null;default:false"`
	Message      string     `gorm:"column:message"`
	VerifiedAt   *time.Time `gorm:"column:verified_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
