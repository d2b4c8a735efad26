package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pranjal1404/easyshopin/internal/cart"
	"github.com/pranjal1404/easyshopin/internal/checkout"
)

type CheckoutHandler struct {
	ctrl    *checkout.Controller
	timeout time.Duration
}

func NewCheckoutHandler(ctrl *checkout.Controller, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{ctrl: ctrl, timeout: timeout}
}

type ShippingAddressRequestDTO struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type PaymentMethodRequestDTO struct {
	Method string `json:"method"`
}

type StageResponseDTO struct {
	Stage checkout.Stage `json:"stage"`
}

func (h *CheckoutHandler) GetStage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	stage, err := h.ctrl.Stage(ctx, sess.UserID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StageResponseDTO{Stage: stage})
}

func (h *CheckoutHandler) SubmitAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req ShippingAddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	addr := cart.Address{
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	}
	if err := h.ctrl.SubmitAddress(ctx, sess.UserID, addr); err != nil {
		handleDomainError(w, err)
		return
	}
	stage, err := h.ctrl.Stage(ctx, sess.UserID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StageResponseDTO{Stage: stage})
}

func (h *CheckoutHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req PaymentMethodRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.ctrl.SelectPaymentMethod(ctx, sess.UserID, req.Method); err != nil {
		handleDomainError(w, err)
		return
	}
	stage, err := h.ctrl.Stage(ctx, sess.UserID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StageResponseDTO{Stage: stage})
}
