package discounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phamdt/aurora-backend/internal/pricing"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
)

// Service resolves coupon codes into pricing descriptors.
type Service interface {
	Lookup(ctx context.Context, code string) (*pricing.Descriptor, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a discount lookup service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discounts repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Lookup returns the descriptor for an active coupon code. Unknown and
// out-of-window codes both surface as not found; the caller decides whether
// that blocks checkout or just drops the discount.
func (s *service) Lookup(ctx context.Context, code string) (*pricing.Descriptor, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code required")
	}

	discount, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up discount")
	}
	if discount == nil || !discount.ActiveAt(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
	}

	return &pricing.Descriptor{
		Code:             discount.Code,
		Kind:             discount.Kind,
		Value:            discount.Value,
		MinOrderTotal:    discount.MinOrderTotal,
		MaxDiscountValue: discount.MaxDiscountValue,
	}, nil
}
