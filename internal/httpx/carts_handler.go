package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/resqbox/resqbox/internal/carts"
)

type CartsHandler struct {
	Carts *carts.Service
}

func (h *CartsHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.getCart)
	r.Delete("/cart", h.abandonCart)
	r.Post("/cart/lines", h.addLine)
	r.Patch("/cart/lines/{offerID}", h.updateLine)
	r.Delete("/cart/lines/{offerID}", h.removeLine)
}

type addLineReq struct {
	OfferID  string `json:"offer_id"`
	Quantity int    `json:"quantity"`
}

type updateLineReq struct {
	Quantity int `json:"quantity"`
}

type cartResp struct {
	OutletID  string         `json:"outlet_id"`
	Status    string         `json:"status"`
	Lines     []cartLineResp `json:"lines"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type cartLineResp struct {
	OfferID    string `json:"offer_id"`
	OfferName  string `json:"offer_name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

func toCartResp(c carts.Cart) cartResp {
	resp := cartResp{
		OutletID:  c.OutletID,
		Status:    string(c.Status),
		Lines:     make([]cartLineResp, 0, len(c.Lines)),
		ExpiresAt: c.ExpiresAt,
	}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, cartLineResp{
			OfferID: l.OfferID, OfferName: l.OfferName, Quantity: l.Quantity, PriceCents: l.PriceCents,
		})
	}
	return resp
}

func (h *CartsHandler) addLine(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id required")
		return
	}
	var req addLineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cart, err := h.Carts.AddLine(r.Context(), customerID, req.OfferID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(cart))
}

func (h *CartsHandler) updateLine(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id required")
		return
	}
	var req updateLineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cart, err := h.Carts.UpdateQuantity(r.Context(), customerID, chi.URLParam(r, "offerID"), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(cart))
}

func (h *CartsHandler) removeLine(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id required")
		return
	}
	cart, err := h.Carts.RemoveLine(r.Context(), customerID, chi.URLParam(r, "offerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(cart))
}

func (h *CartsHandler) getCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id required")
		return
	}
	cart, err := h.Carts.Get(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(cart))
}

func (h *CartsHandler) abandonCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id required")
		return
	}
	if err := h.Carts.Abandon(r.Context(), customerID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Identity headers are set by the auth collaborator upstream; the core
// asserts ownership against them, it does not authenticate.
func customerFrom(r *http.Request) (string, bool) {
	id := r.Header.Get("X-Customer-Id")
	return id, id != ""
}

func outletFrom(r *http.Request) (string, bool) {
	id := r.Header.Get("X-Outlet-Id")
	return id, id != ""
}
