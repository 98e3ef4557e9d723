package controllers

import (
	"net/http"

	"github.com/phamdt/aurora-backend/api/responses"
	paymentsvc "github.com/phamdt/aurora-backend/internal/payments"
	"github.com/phamdt/aurora-backend/pkg/logger"
)

// PaymentReturn handles the browser redirect back from the payment gateway.
// The endpoint is unauthenticated because the gateway appends its own signed
// parameters; the signature is the credential.
func PaymentReturn(verifier paymentsvc.Verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := verifier.VerifyReturn(r.Context(), r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
