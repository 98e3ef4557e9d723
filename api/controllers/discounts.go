package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phamdt/aurora-backend/api/responses"
	discountsvc "github.com/phamdt/aurora-backend/internal/discounts"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
	"github.com/phamdt/aurora-backend/pkg/logger"
)

type discountResponse struct {
	Code             string `json:"code"`
	Kind             string `json:"kind"`
	Value            int64  `json:"value"`
	MinOrderTotal    *int64 `json:"min_order_total,omitempty"`
	MaxDiscountValue *int64 `json:"max_discount_value,omitempty"`
}

// DiscountLookup resolves a coupon code to its active terms.
func DiscountLookup(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required"))
			return
		}

		descriptor, err := svc.Lookup(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, discountResponse{
			Code:             descriptor.Code,
			Kind:             descriptor.Kind.String(),
			Value:            descriptor.Value,
			MinOrderTotal:    descriptor.MinOrderTotal,
			MaxDiscountValue: descriptor.MaxDiscountValue,
		})
	}
}
