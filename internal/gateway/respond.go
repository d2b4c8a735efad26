package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/pranjal1404/easyshopin/internal/cart"
	"github.com/pranjal1404/easyshopin/internal/catalog"
	"github.com/pranjal1404/easyshopin/internal/checkout"
	"github.com/pranjal1404/easyshopin/internal/order"
	"github.com/pranjal1404/easyshopin/internal/payment"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError maps domain sentinels to HTTP responses. An
// ambiguous submission gets its own shape so clients can pick up the
// client token for reconciliation.
func handleDomainError(w http.ResponseWriter, err error) {
	var ambiguous *order.AmbiguousOutcomeError
	if errors.As(err, &ambiguous) {
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "order submission outcome unknown, reconcile before retrying",
			Code:    "submission_ambiguous",
			Details: ambiguous.ClientToken,
		})
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		httpStatus = http.StatusBadRequest
		code = "invalid_quantity"
	case errors.Is(err, checkout.ErrIncompleteShipping):
		httpStatus = http.StatusBadRequest
		code = "incomplete_shipping_info"
	case errors.Is(err, checkout.ErrUnsupportedMethod):
		httpStatus = http.StatusBadRequest
		code = "unsupported_payment_method"
	case errors.Is(err, checkout.ErrNoPaymentMethod):
		httpStatus = http.StatusBadRequest
		code = "no_payment_method"
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus = http.StatusBadRequest
		code = "empty_cart"
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, payment.ErrNoAttempt):
		httpStatus = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, order.ErrAlreadyPaid):
		httpStatus = http.StatusConflict
		code = "already_paid"
	case errors.Is(err, order.ErrNotPaid):
		httpStatus = http.StatusConflict
		code = "not_paid"
	case errors.Is(err, order.ErrStockConflict):
		httpStatus = http.StatusConflict
		code = "stock_conflict"
	case errors.Is(err, order.ErrPlacementInFlight),
		errors.Is(err, payment.ErrCaptureInFlight):
		httpStatus = http.StatusConflict
		code = "operation_in_flight"
	case errors.Is(err, payment.ErrIllegalTransition):
		httpStatus = http.StatusConflict
		code = "illegal_transition"
	case errors.Is(err, order.ErrNotAdmin):
		httpStatus = http.StatusForbidden
		code = "permission_denied"
	case errors.Is(err, payment.ErrProviderDeclined):
		httpStatus = http.StatusPaymentRequired
		code = "payment_declined"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	default:
		log.Error().Err(err).Msg("unhandled domain error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
