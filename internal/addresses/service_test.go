package addresses

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/pkg/db/models"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
)

type stubAddressRepo struct {
	byID      map[uuid.UUID]*models.Address
	created   []*models.Address
	createErr error
}

func newStubAddressRepo() *stubAddressRepo {
	return &stubAddressRepo{byID: map[uuid.UUID]*models.Address{}}
}

func (s *stubAddressRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAddressRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Address, error) {
	rows := []models.Address{}
	for _, a := range s.byID {
		if a.CustomerID == customerID {
			rows = append(rows, *a)
		}
	}
	return rows, nil
}

func (s *stubAddressRepo) FindByIDForCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.Address, error) {
	a, ok := s.byID[id]
	if !ok || a.CustomerID != customerID {
		return nil, nil
	}
	return a, nil
}

func (s *stubAddressRepo) Create(ctx context.Context, address *models.Address) (*models.Address, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	address.ID = uuid.New()
	s.byID[address.ID] = address
	s.created = append(s.created, address)
	return address, nil
}

func (s *stubAddressRepo) ClearDefault(ctx context.Context, customerID uuid.UUID) error {
	for _, a := range s.byID {
		if a.CustomerID == customerID {
			a.IsDefault = false
		}
	}
	return nil
}

func validDraft() Draft {
	return Draft{
		FullName: "Tran Minh Anh",
		Phone:    "0901234567",
		Street:   "12 Nguyen Trai",
		Ward:     "Ben Thanh",
		District: "District 1",
		City:     "Ho Chi Minh City",
	}
}

func TestResolveSelectedAddress(t *testing.T) {
	repo := newStubAddressRepo()
	customerID := uuid.New()
	saved := &models.Address{ID: uuid.New(), CustomerID: customerID, FullName: "Tran Minh Anh"}
	repo.byID[saved.ID] = saved

	svc, err := NewService(repo)
	require.NoError(t, err)

	address, err := svc.Resolve(context.Background(), nil, customerID, ResolveInput{
		SelectedAddressID: &saved.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, address.ID)
}

func TestResolveRejectsMissingSelection(t *testing.T) {
	svc, err := NewService(newStubAddressRepo())
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), nil, uuid.New(), ResolveInput{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestResolveRejectsForeignAddress(t *testing.T) {
	repo := newStubAddressRepo()
	other := &models.Address{ID: uuid.New(), CustomerID: uuid.New()}
	repo.byID[other.ID] = other

	svc, err := NewService(repo)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), nil, uuid.New(), ResolveInput{
		SelectedAddressID: &other.ID,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestResolvePersistsDraft(t *testing.T) {
	repo := newStubAddressRepo()
	customerID := uuid.New()

	svc, err := NewService(repo)
	require.NoError(t, err)

	address, err := svc.Resolve(context.Background(), nil, customerID, ResolveInput{
		UseNewAddress: true,
		Draft:         func() *Draft { d := validDraft(); return &d }(),
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, customerID, address.CustomerID)
	assert.NotEqual(t, uuid.Nil, address.ID)
}

func TestResolveRejectsIncompleteDraft(t *testing.T) {
	svc, err := NewService(newStubAddressRepo())
	require.NoError(t, err)

	draft := validDraft()
	draft.Phone = " "
	draft.City = ""

	_, err = svc.Resolve(context.Background(), nil, uuid.New(), ResolveInput{
		UseNewAddress: true,
		Draft:         &draft,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"phone", "city"}, details["missing_fields"])
}

func TestResolveSurfacesPersistenceFailure(t *testing.T) {
	repo := newStubAddressRepo()
	repo.createErr = errors.New("connection reset")

	svc, err := NewService(repo)
	require.NoError(t, err)

	draft := validDraft()
	_, err = svc.Resolve(context.Background(), nil, uuid.New(), ResolveInput{
		UseNewAddress: true,
		Draft:         &draft,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}
