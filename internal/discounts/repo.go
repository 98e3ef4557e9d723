package discounts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/pkg/db/models"
)

// Repository defines persistence operations for coupon lookup.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a discounts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&discount).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &discount, nil
}
