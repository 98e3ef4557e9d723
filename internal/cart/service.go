package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/phamdt/aurora-backend/internal/pricing"
	"github.com/phamdt/aurora-backend/pkg/db/models"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
)

// Snapshot is a customer's cart at one instant.
type Snapshot struct {
	Items         []models.CartItem
	TotalQuantity int
}

// Lines converts the snapshot into pricing engine input.
func (s Snapshot) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(s.Items))
	for _, item := range s.Items {
		lines = append(lines, pricing.Line{
			UnitPrice: item.UnitPrice,
			SalePrice: item.SalePrice,
			Qty:       item.Qty,
		})
	}
	return lines
}

// AddItemInput carries a product snapshot taken by the caller at add time.
type AddItemInput struct {
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   int64
	SalePrice   *int64
	Qty         int
}

// Service exposes cart reads and mutations.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*Snapshot, error)
	AddItem(ctx context.Context, customerID uuid.UUID, input AddItemInput) (*models.CartItem, error)
	UpdateQty(ctx context.Context, customerID, itemID uuid.UUID, qty int) error
	RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService builds the cart service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*Snapshot, error) {
	items, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	snapshot := &Snapshot{Items: items}
	for _, item := range items {
		snapshot.TotalQuantity += item.Qty
	}
	return snapshot, nil
}

func (s *service) AddItem(ctx context.Context, customerID uuid.UUID, input AddItemInput) (*models.CartItem, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if strings.TrimSpace(input.ProductName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.Qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.UnitPrice < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	if input.SalePrice != nil && *input.SalePrice > input.UnitPrice {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale price must not exceed unit price")
	}

	existing, err := s.repo.FindByProduct(ctx, customerID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}
	if existing != nil {
		newQty := existing.Qty + input.Qty
		if err := s.repo.UpdateQty(ctx, existing.ID, newQty); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating cart item")
		}
		existing.Qty = newQty
		return existing, nil
	}

	item := &models.CartItem{
		CustomerID:  customerID,
		ProductID:   input.ProductID,
		ProductName: strings.TrimSpace(input.ProductName),
		UnitPrice:   input.UnitPrice,
		SalePrice:   input.SalePrice,
		Qty:         input.Qty,
	}
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adding cart item")
	}
	return created, nil
}

func (s *service) UpdateQty(ctx context.Context, customerID, itemID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	item, err := s.repo.FindByIDForCustomer(ctx, itemID, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}
	if item == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.UpdateQty(ctx, item.ID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating cart item")
	}
	return nil
}

func (s *service) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) error {
	item, err := s.repo.FindByIDForCustomer(ctx, itemID, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}
	if item == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart item")
	}
	return nil
}
