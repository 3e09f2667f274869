package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/resqbox/resqbox/internal/carts"
	"github.com/resqbox/resqbox/internal/offers"
	"github.com/resqbox/resqbox/internal/orders"
	"github.com/resqbox/resqbox/internal/payments"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// writeDomainError maps expected business outcomes and transient failures
// onto HTTP statuses. Unknown errors stay opaque.
func writeDomainError(w http.ResponseWriter, err error) {
	var gerr *payments.GatewayError
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, offers.ErrNotFound),
		errors.Is(err, payments.ErrNotFound), errors.Is(err, carts.ErrLineNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, orders.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", "caller not authorized for this resource")
	case errors.Is(err, offers.ErrOutOfStock):
		writeError(w, http.StatusConflict, "out_of_stock", err.Error())
	case errors.Is(err, offers.ErrInactive):
		writeError(w, http.StatusConflict, "offer_inactive", err.Error())
	case errors.Is(err, offers.ErrContention):
		writeError(w, http.StatusServiceUnavailable, "contention", "resource busy, retry")
	case errors.Is(err, carts.ErrExpired):
		writeError(w, http.StatusGone, "cart_expired", err.Error())
	case errors.Is(err, carts.ErrEmpty):
		writeError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, carts.ErrOutletMismatch):
		writeError(w, http.StatusConflict, "outlet_mismatch", err.Error())
	case errors.Is(err, carts.ErrInvalidQuantity), errors.Is(err, orders.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, orders.ErrInvalidStatus), errors.Is(err, payments.ErrInvalidStatus):
		writeError(w, http.StatusConflict, "invalid_status", err.Error())
	case errors.Is(err, orders.ErrInvalidPickupCode):
		writeError(w, http.StatusUnprocessableEntity, "invalid_pickup_code", "pickup code mismatch")
	case errors.As(err, &gerr):
		writeError(w, http.StatusPaymentRequired, "payment_failed", gerr.Message)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
