package webhook_api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/utils"
	"verbs-tickets/internal/webhook"
)

// Stripe caps webhook payloads well under this.
const maxBodyBytes = int64(65536)

type Handler struct {
	reconciler *webhook.Reconciler
	logger     *logger.Logger
}

func NewHandler(reconciler *webhook.Reconciler, log *logger.Logger) *Handler {
	return &Handler{reconciler: reconciler, logger: log}
}

// HandleWebhook handles POST /api/stripe-webhook. The raw body is read
// before any parsing because signature verification runs over the exact
// bytes Stripe sent.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	err = h.reconciler.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var webhookErr *webhook.WebhookError
		if errors.As(err, &webhookErr) {
			utils.WriteError(w, webhookErr.Status, webhookErr.Message)
			return
		}
		h.logger.Error("WEBHOOK", fmt.Sprintf("Webhook processing failed: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Webhook handler failed")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
