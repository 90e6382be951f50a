package checkout_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"verbs-tickets/internal/checkout"
	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/utils"
)

type Handler struct {
	service *checkout.Service
	logger  *logger.Logger
}

func NewHandler(service *checkout.Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Checkout handles POST /api/checkout. On success the response carries the
// payment redirect URL as {"url": ...}.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	url, err := h.service.Checkout(r.Context(), req)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// DoorCheckout handles POST /api/door-checkout.
func (h *Handler) DoorCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.DoorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	url, err := h.service.DoorCheckout(r.Context(), req)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var apiErr *checkout.APIError
	if errors.As(err, &apiErr) {
		utils.WriteError(w, apiErr.Status, apiErr.Message)
		return
	}
	h.logger.Error("CHECKOUT", fmt.Sprintf("Checkout failed: %v", err))
	utils.WriteError(w, http.StatusInternalServerError, "Failed to create checkout session")
}
