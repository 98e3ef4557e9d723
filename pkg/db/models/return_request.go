package models

import (
	"time"

	"github.com/google/uuid"
)

// ReturnRequest is the customer-initiated subprocess attached to a
// delivered order. It references the order without touching its status;
// only staff approval moves the order from delivered to returned.
type ReturnRequest struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null"`
	Reason     string     `gorm:"column:reason;not null"`
	Approved   bool       `gorm:"column:approved;not null;default:false"`
	ResolvedAt *time.Time `gorm:"column:resolved_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
