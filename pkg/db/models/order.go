package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/phamdt/aurora-backend/pkg/enums"
)

// Order is the central aggregate of the checkout workflow. It is created
// exactly once from a cart snapshot and afterwards mutated only through the
// fulfillment state machine. Orders are never deleted; cancellation and
// return are statuses.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID     uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Status         enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Subtotal       int64               `gorm:"column:subtotal;not null"`
	DiscountAmount int64               `gorm:"column:discount_amount;not null;default:0"`
	Total          int64               `gorm:"column:total;not null"`
	DiscountCode   *string             `gorm:"column:discount_code"`
	Note           *string             `gorm:"column:note"`

	// Address snapshot, frozen at order creation so later edits to the
	// address book cannot change where an accepted order ships.
	ShipFullName string `gorm:"column:ship_full_name;not null"`
	ShipPhone    string `gorm:"column:ship_phone;not null"`
	ShipStreet   string `gorm:"column:ship_street;not null"`
	ShipWard     string `gorm:"column:ship_ward;not null"`
	ShipDistrict string `gorm:"column:ship_district;not null"`
	ShipCity     string `gorm:"column:ship_city;not null"`

	Items        []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Transactions []PaymentTransaction `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
