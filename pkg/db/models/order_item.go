package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a frozen copy of a cart line at the moment the order was
// created. It is never recomputed from the live catalog.
type OrderItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName string    `gorm:"column:product_name;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	Qty         int       `gorm:"column:qty;not null"`
	LineTotal   int64     `gorm:"column:line_total;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
