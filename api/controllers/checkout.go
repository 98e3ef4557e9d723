package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/phamdt/aurora-backend/api/responses"
	"github.com/phamdt/aurora-backend/api/validators"
	addrsvc "github.com/phamdt/aurora-backend/internal/addresses"
	checkoutsvc "github.com/phamdt/aurora-backend/internal/checkout"
	"github.com/phamdt/aurora-backend/pkg/enums"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
	"github.com/phamdt/aurora-backend/pkg/logger"
)

type checkoutAddressPayload struct {
	UseNewAddress     bool       `json:"use_new_address"`
	SelectedAddressID *uuid.UUID `json:"selected_address_id"`
	FullName          string     `json:"full_name"`
	Phone             string     `json:"phone"`
	Street            string     `json:"street"`
	Ward              string     `json:"ward"`
	District          string     `json:"district"`
	City              string     `json:"city"`
	SaveAsDefault     bool       `json:"save_as_default"`
}

func (p checkoutAddressPayload) toResolveInput() addrsvc.ResolveInput {
	input := addrsvc.ResolveInput{
		UseNewAddress:     p.UseNewAddress,
		SelectedAddressID: p.SelectedAddressID,
	}
	if p.UseNewAddress {
		input.Draft = &addrsvc.Draft{
			FullName:  p.FullName,
			Phone:     p.Phone,
			Street:    p.Street,
			Ward:      p.Ward,
			District:  p.District,
			City:      p.City,
			IsDefault: p.SaveAsDefault,
		}
	}
	return input
}

type checkoutRequest struct {
	PaymentMethod string                 `json:"payment_method" validate:"required"`
	Address       checkoutAddressPayload `json:"address" validate:"required"`
	DiscountCode  string                 `json:"discount_code"`
	Note          string                 `json:"note"`
}

type checkoutResponse struct {
	OrderID         uuid.UUID `json:"order_id"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"payment_status"`
	PaymentMethod   string    `json:"payment_method"`
	Subtotal        int64     `json:"subtotal"`
	DiscountAmount  int64     `json:"discount_amount"`
	Total           int64     `json:"total"`
	PaymentURL      string    `json:"payment_url,omitempty"`
	DiscountDropped bool      `json:"discount_dropped"`
}

func newCheckoutResponse(result *checkoutsvc.SubmitResult) checkoutResponse {
	order := result.Order
	return checkoutResponse{
		OrderID:         order.ID,
		Status:          order.Status.String(),
		PaymentStatus:   order.PaymentStatus.String(),
		PaymentMethod:   order.PaymentMethod.String(),
		Subtotal:        order.Subtotal,
		DiscountAmount:  order.DiscountAmount,
		Total:           order.Total,
		PaymentURL:      result.PaymentURL,
		DiscountDropped: result.DiscountDropped,
	}
}

// CheckoutSubmit turns the caller's cart into an order.
func CheckoutSubmit(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		result, err := svc.Submit(r.Context(), checkoutsvc.SubmitInput{
			CustomerID:    customerID,
			PaymentMethod: method,
			Address:       payload.Address.toResolveInput(),
			DiscountCode:  payload.DiscountCode,
			Note:          payload.Note,
			ClientIP:      clientIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type quoteResponse struct {
	Subtotal        int64 `json:"subtotal"`
	DiscountAmount  int64 `json:"discount_amount"`
	Total           int64 `json:"total"`
	DiscountDropped bool  `json:"discount_dropped"`
}

// CheckoutQuote previews the totals of the current cart without creating
// anything. The preview runs the same pricing path as submission.
func CheckoutQuote(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), customerID, strings.TrimSpace(r.URL.Query().Get("discount_code")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quoteResponse{
			Subtotal:        quote.Subtotal,
			DiscountAmount:  quote.DiscountAmount,
			Total:           quote.Total,
			DiscountDropped: quote.DiscountDropped,
		})
	}
}

// OrderRepayment issues a fresh gateway payment URL for an unpaid order.
func OrderRepayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Repayment(r.Context(), customerID, orderID, clientIP(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCheckoutResponse(result))
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
