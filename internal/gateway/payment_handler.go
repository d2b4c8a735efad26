package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/pranjal1404/easyshopin/internal/order"
	"github.com/pranjal1404/easyshopin/internal/payment"
)

type PaymentHandler struct {
	payments *payment.Coordinator
	orders   *order.Service
	timeout  time.Duration
}

func NewPaymentHandler(payments *payment.Coordinator, orders *order.Service, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{payments: payments, orders: orders, timeout: timeout}
}

type AttemptResponseDTO struct {
	OrderID         string        `json:"order_id"`
	ProviderOrderID string        `json:"provider_order_id,omitempty"`
	State           payment.State `json:"state"`
}

func attemptDTO(att *payment.Attempt) AttemptResponseDTO {
	return AttemptResponseDTO{
		OrderID:         att.OrderID.String(),
		ProviderOrderID: att.ProviderOrderID,
		State:           att.State,
	}
}

// Pay runs the capture flow for an order the caller owns.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	// Ownership gate; foreign orders read as missing.
	if _, err := h.orders.Get(ctx, sess, id); err != nil {
		handleDomainError(w, err)
		return
	}

	att, err := h.payments.Pay(ctx, id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, attemptDTO(att))
}

// RetrySettlement re-runs the settlement step after a capture whose
// recording failed. Funds are never pulled a second time.
func (h *PaymentHandler) RetrySettlement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if _, err := h.orders.Get(ctx, sess, id); err != nil {
		handleDomainError(w, err)
		return
	}

	att, err := h.payments.RetrySettlement(ctx, id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, attemptDTO(att))
}

func (h *PaymentHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if _, err := h.orders.Get(ctx, sess, id); err != nil {
		handleDomainError(w, err)
		return
	}

	att, found := h.payments.Attempt(id)
	if !found {
		handleDomainError(w, payment.ErrNoAttempt)
		return
	}
	respondJSON(w, http.StatusOK, attemptDTO(att))
}
