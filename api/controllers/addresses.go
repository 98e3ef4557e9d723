package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/phamdt/aurora-backend/api/responses"
	"github.com/phamdt/aurora-backend/api/validators"
	addrsvc "github.com/phamdt/aurora-backend/internal/addresses"
	"github.com/phamdt/aurora-backend/pkg/db/models"
	"github.com/phamdt/aurora-backend/pkg/logger"
)

type addressResponse struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Street    string    `json:"street"`
	Ward      string    `json:"ward"`
	District  string    `json:"district"`
	City      string    `json:"city"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

func newAddressResponse(address models.Address) addressResponse {
	return addressResponse{
		ID:        address.ID,
		FullName:  address.FullName,
		Phone:     address.Phone,
		Street:    address.Street,
		Ward:      address.Ward,
		District:  address.District,
		City:      address.City,
		IsDefault: address.IsDefault,
		CreatedAt: address.CreatedAt,
	}
}

// AddressList returns the caller's address book, default address first.
func AddressList(svc addrsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.List(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]addressResponse, 0, len(records))
		for _, record := range records {
			items = append(items, newAddressResponse(record))
		}
		responses.WriteSuccess(w, map[string]any{"addresses": items})
	}
}

type createAddressRequest struct {
	FullName  string `json:"full_name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Street    string `json:"street" validate:"required"`
	Ward      string `json:"ward" validate:"required"`
	District  string `json:"district" validate:"required"`
	City      string `json:"city" validate:"required"`
	IsDefault bool   `json:"is_default"`
}

// AddressCreate saves a new address for the caller.
func AddressCreate(svc addrsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createAddressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Create(r.Context(), customerID, addrsvc.Draft{
			FullName:  payload.FullName,
			Phone:     payload.Phone,
			Street:    payload.Street,
			Ward:      payload.Ward,
			District:  payload.District,
			City:      payload.City,
			IsDefault: payload.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newAddressResponse(*record))
	}
}
