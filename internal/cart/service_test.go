package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/pkg/db/models"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
)

type stubCartRepo struct {
	items map[uuid.UUID]*models.CartItem
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{items: map[uuid.UUID]*models.CartItem{}}
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCartRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CartItem, error) {
	rows := []models.CartItem{}
	for _, item := range s.items {
		if item.CustomerID == customerID {
			rows = append(rows, *item)
		}
	}
	return rows, nil
}

func (s *stubCartRepo) FindByProduct(ctx context.Context, customerID, productID uuid.UUID) (*models.CartItem, error) {
	for _, item := range s.items {
		if item.CustomerID == customerID && item.ProductID == productID {
			return item, nil
		}
	}
	return nil, nil
}

func (s *stubCartRepo) FindByIDForCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.CartItem, error) {
	item, ok := s.items[id]
	if !ok || item.CustomerID != customerID {
		return nil, nil
	}
	return item, nil
}

func (s *stubCartRepo) Create(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	item.ID = uuid.New()
	s.items[item.ID] = item
	return item, nil
}

func (s *stubCartRepo) UpdateQty(ctx context.Context, id uuid.UUID, qty int) error {
	if item, ok := s.items[id]; ok {
		item.Qty = qty
	}
	return nil
}

func (s *stubCartRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.items, id)
	return nil
}

func (s *stubCartRepo) Clear(ctx context.Context, customerID uuid.UUID) error {
	for id, item := range s.items {
		if item.CustomerID == customerID {
			delete(s.items, id)
		}
	}
	return nil
}

func TestAddItemMergesExistingProduct(t *testing.T) {
	repo := newStubCartRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	productID := uuid.New()
	input := AddItemInput{ProductID: productID, ProductName: "Ceramic Mug", UnitPrice: 80_000, Qty: 1}

	_, err = svc.AddItem(context.Background(), customerID, input)
	require.NoError(t, err)

	input.Qty = 2
	item, err := svc.AddItem(context.Background(), customerID, input)
	require.NoError(t, err)

	assert.Equal(t, 3, item.Qty)
	assert.Len(t, repo.items, 1)
}

func TestAddItemRejectsSaleAboveUnitPrice(t *testing.T) {
	svc, err := NewService(newStubCartRepo())
	require.NoError(t, err)

	sale := int64(90_000)
	_, err = svc.AddItem(context.Background(), uuid.New(), AddItemInput{
		ProductID:   uuid.New(),
		ProductName: "Ceramic Mug",
		UnitPrice:   80_000,
		SalePrice:   &sale,
		Qty:         1,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestUpdateQtyRejectsForeignItem(t *testing.T) {
	repo := newStubCartRepo()
	other := &models.CartItem{ID: uuid.New(), CustomerID: uuid.New(), Qty: 1}
	repo.items[other.ID] = other

	svc, err := NewService(repo)
	require.NoError(t, err)

	err = svc.UpdateQty(context.Background(), uuid.New(), other.ID, 5)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, 1, other.Qty)
}

func TestGetSumsQuantities(t *testing.T) {
	repo := newStubCartRepo()
	customerID := uuid.New()
	for _, qty := range []int{2, 3} {
		item := &models.CartItem{ID: uuid.New(), CustomerID: customerID, ProductID: uuid.New(), Qty: qty}
		repo.items[item.ID] = item
	}

	svc, err := NewService(repo)
	require.NoError(t, err)

	snapshot, err := svc.Get(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.TotalQuantity)
	assert.Len(t, snapshot.Lines(), 2)
}
