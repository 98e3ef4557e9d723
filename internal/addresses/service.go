package addresses

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phamdt/aurora-backend/pkg/db/models"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
)

// Draft is an unsaved address submitted inline during checkout. It is
// promoted to a persisted address exactly once, immediately before order
// creation.
type Draft struct {
	FullName  string
	Phone     string
	Street    string
	Ward      string
	District  string
	City      string
	IsDefault bool
}

// ResolveInput selects between a saved address and an inline draft.
type ResolveInput struct {
	UseNewAddress     bool
	SelectedAddressID *uuid.UUID
	Draft             *Draft
}

// Service exposes address book reads plus checkout-time resolution.
type Service interface {
	List(ctx context.Context, customerID uuid.UUID) ([]models.Address, error)
	Create(ctx context.Context, customerID uuid.UUID, draft Draft) (*models.Address, error)
	Resolve(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, input ResolveInput) (*models.Address, error)
}

type service struct {
	repo Repository
}

// NewService builds the address service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("addresses repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]models.Address, error) {
	rows, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing addresses")
	}
	return rows, nil
}

func (s *service) Create(ctx context.Context, customerID uuid.UUID, draft Draft) (*models.Address, error) {
	return s.create(ctx, s.repo, customerID, draft)
}

// Resolve normalizes the checkout address choice into a persisted address.
// Saved addresses must belong to the requesting customer; drafts are
// validated and persisted inside the caller's transaction so a later
// checkout failure rolls the new address back too.
func (s *service) Resolve(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, input ResolveInput) (*models.Address, error) {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}

	if !input.UseNewAddress {
		if input.SelectedAddressID == nil || *input.SelectedAddressID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no address selected")
		}
		address, err := repo.FindByIDForCustomer(ctx, *input.SelectedAddressID, customerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading address")
		}
		if address == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return address, nil
	}

	if input.Draft == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new address required")
	}
	return s.create(ctx, repo, customerID, *input.Draft)
}

func (s *service) create(ctx context.Context, repo Repository, customerID uuid.UUID, draft Draft) (*models.Address, error) {
	if missing := missingDraftFields(draft); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "incomplete address").
			WithDetails(map[string]any{"missing_fields": missing})
	}

	if draft.IsDefault {
		if err := repo.ClearDefault(ctx, customerID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating default address")
		}
	}

	address := &models.Address{
		CustomerID: customerID,
		FullName:   strings.TrimSpace(draft.FullName),
		Phone:      strings.TrimSpace(draft.Phone),
		Street:     strings.TrimSpace(draft.Street),
		Ward:       strings.TrimSpace(draft.Ward),
		District:   strings.TrimSpace(draft.District),
		City:       strings.TrimSpace(draft.City),
		IsDefault:  draft.IsDefault,
	}
	created, err := repo.Create(ctx, address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "address creation failed")
	}
	return created, nil
}

func missingDraftFields(draft Draft) []string {
	missing := []string{}
	fields := map[string]string{
		"full_name": draft.FullName,
		"phone":     draft.Phone,
		"street":    draft.Street,
		"ward":      draft.Ward,
		"district":  draft.District,
		"city":      draft.City,
	}
	for _, name := range []string{"full_name", "phone", "street", "ward", "district", "city"} {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
