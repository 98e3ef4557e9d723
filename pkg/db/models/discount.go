package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/phamdt/aurora-backend/pkg/enums"
)

// Discount is a coupon looked up by code. Usage limits are enforced by the
// promotions service that owns this table; checkout only applies the
// descriptor to a cart total.
type Discount struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string             `gorm:"column:code;uniqueIndex;not null"`
	Kind             enums.DiscountKind `gorm:"column:kind;type:text;not null"`
	Value            int64              `gorm:"column:value;not null"`
	MinOrderTotal    *int64             `gorm:"column:min_order_total"`
	MaxDiscountValue *int64             `gorm:"column:max_discount_value"`
	StartsAt         *time.Time         `gorm:"column:starts_at"`
	EndsAt           *time.Time         `gorm:"column:ends_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveAt reports whether the coupon window covers the given instant.
func (d Discount) ActiveAt(now time.Time) bool {
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	return true
}
