package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/resqbox/resqbox/internal/payments"
)

// WebhookProcessor applies a verified gateway callback.
type WebhookProcessor interface {
	Handle(ctx context.Context, p payments.WebhookPayload) error
}

// WebhookHandler terminates the gateway's callback endpoint. The contract
// with the gateway: a bad signature is rejected outright; everything else is
// acknowledged with 200 even when processing failed, so the gateway does not
// retry-storm us. Failures are logged for manual reconciliation.
type WebhookHandler struct {
	Processor WebhookProcessor
	Log       *zap.Logger
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/payment", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	var payload payments.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		// Not a signed payload at all; nothing to reconcile.
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	err := h.Processor.Handle(r.Context(), payload)
	switch {
	case errors.Is(err, payments.ErrBadSignature):
		// No body hints for the caller; the processor already logged context.
		w.WriteHeader(http.StatusUnauthorized)
	case err != nil:
		h.Log.Error("webhook processing failed",
			zap.String("transaction_id", payload.TransactionID),
			zap.String("order_reference", payload.OrderReference),
			zap.String("status", payload.Status),
			zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
