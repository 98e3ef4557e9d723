package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a customer's active cart. Prices are snapshots
// taken when the item was added; the pricing engine derives everything else.
type CartItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID  uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName string    `gorm:"column:product_name;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	SalePrice   *int64    `gorm:"column:sale_price"`
	Qty         int       `gorm:"column:qty;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
