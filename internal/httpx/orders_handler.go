package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/resqbox/resqbox/internal/carts"
	"github.com/resqbox/resqbox/internal/offers"
	"github.com/resqbox/resqbox/internal/orders"
)

type OrdersHandler struct {
	Orders *orders.Service
	Offers *offers.Ledger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/offers", h.listOffers)

	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)

	r.Post("/orders/{id}/accept", h.acceptOrder)
	r.Post("/orders/{id}/decline", h.declineOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/orders/{id}/preparing", h.markPreparing)
	r.Post("/orders/{id}/ready", h.markReady)
	r.Post("/orders/{id}/pickup", h.verifyPickup)
	r.Post("/orders/{id}/rate", h.rateOrder)
}

type createOrderReq struct {
	PaymentMethod string `json:"payment_method"`
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type pickupReq struct {
	Code string `json:"code"`
}

type rateReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type orderResp struct {
	ID                     string          `json:"id"`
	Number                 string          `json:"number"`
	CustomerID             string          `json:"customer_id"`
	OutletID               string          `json:"outlet_id"`
	Status                 string          `json:"status"`
	Lines                  []orderLineResp `json:"lines,omitempty"`
	SubtotalCents          int64           `json:"subtotal_cents"`
	ServiceFeeCents        int64           `json:"service_fee_cents"`
	TotalCents             int64           `json:"total_cents"`
	PickupCode             string          `json:"pickup_code,omitempty"`
	ShopAcceptanceDeadline *time.Time      `json:"shop_acceptance_deadline,omitempty"`
	PickupDeadline         *time.Time      `json:"pickup_deadline,omitempty"`
	DeclineReason          string          `json:"decline_reason,omitempty"`
	CancelReason           string          `json:"cancel_reason,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

type orderLineResp struct {
	OfferID        string `json:"offer_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type adjustmentResp struct {
	OfferID  string `json:"offer_id"`
	Reason   string `json:"reason"`
	OldValue int64  `json:"old_value"`
	NewValue int64  `json:"new_value,omitempty"`
}

type createOrderResp struct {
	Order         orderResp        `json:"order"`
	PaymentStatus string           `json:"payment_status"`
	Adjustments   []adjustmentResp `json:"adjustments,omitempty"`
}

// toOrderResp renders an order for its customer. The pickup code goes only
// to the customer; includeCode hides it from the outlet, which learns the
// code from the customer at the counter.
func toOrderResp(o orders.Order, includeCode bool) orderResp {
	resp := orderResp{
		ID:                     o.ID,
		Number:                 o.Number,
		CustomerID:             o.CustomerID,
		OutletID:               o.OutletID,
		Status:                 string(o.Status),
		SubtotalCents:          o.SubtotalCents,
		ServiceFeeCents:        o.ServiceFeeCents,
		TotalCents:             o.TotalCents,
		ShopAcceptanceDeadline: o.ShopAcceptanceDeadline,
		PickupDeadline:         o.PickupDeadline,
		DeclineReason:          o.DeclineReason,
		CancelReason:           o.CancelReason,
		CreatedAt:              o.CreatedAt,
	}
	if includeCode {
		resp.PickupCode = o.PickupCode
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResp{
			OfferID: l.OfferID, Quantity: l.Quantity,
			UnitPriceCents: l.UnitPriceCents, LineTotalCents: l.LineTotalCents,
		})
	}
	return resp
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id required")
		return
	}
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "payment_method required")
		return
	}

	res, err := h.Orders.Create(r.Context(), customerID, req.PaymentMethod)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := createOrderResp{
		Order:         toOrderResp(res.Order, true),
		PaymentStatus: string(res.Payment.Status),
		Adjustments:   toAdjustments(res.Adjustments),
	}
	writeJSON(w, http.StatusCreated, resp)
}

func toAdjustments(in []carts.Adjustment) []adjustmentResp {
	out := make([]adjustmentResp, 0, len(in))
	for _, a := range in {
		out = append(out, adjustmentResp{
			OfferID: a.OfferID, Reason: a.Reason, OldValue: a.OldValue, NewValue: a.NewValue,
		})
	}
	return out
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	callerID, isCustomer := customerFrom(r)
	if !isCustomer {
		if outletID, ok := outletFrom(r); ok {
			callerID = outletID
		} else {
			writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id or X-Outlet-Id required")
			return
		}
	}

	o, err := h.Orders.Get(r.Context(), callerID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, isCustomer))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if customerID, ok := customerFrom(r); ok {
		list, err := h.Orders.ListForCustomer(r.Context(), customerID, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderList(list, true))
		return
	}
	if outletID, ok := outletFrom(r); ok {
		list, err := h.Orders.ListForOutlet(r.Context(), outletID, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderList(list, false))
		return
	}
	writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id or X-Outlet-Id required")
}

func toOrderList(list []orders.Order, includeCode bool) []orderResp {
	out := make([]orderResp, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResp(o, includeCode))
	}
	return out
}

func (h *OrdersHandler) acceptOrder(w http.ResponseWriter, r *http.Request) {
	outletID, ok := outletFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Outlet-Id required")
		return
	}
	o, err := h.Orders.Accept(r.Context(), outletID, chi.URLParam(r, "id"))
	if err != nil && o.ID == "" {
		writeDomainError(w, err)
		return
	}
	if err != nil {
		// Capture failed: the decline was committed, report the outcome.
		writeJSON(w, http.StatusConflict, createOrderResp{
			Order:         toOrderResp(o, false),
			PaymentStatus: "FAILED",
		})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, false))
}

func (h *OrdersHandler) declineOrder(w http.ResponseWriter, r *http.Request) {
	outletID, ok := outletFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Outlet-Id required")
		return
	}
	var req reasonReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	o, err := h.Orders.Decline(r.Context(), outletID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, false))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id required")
		return
	}
	var req reasonReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	o, err := h.Orders.Cancel(r.Context(), customerID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, true))
}

func (h *OrdersHandler) markPreparing(w http.ResponseWriter, r *http.Request) {
	outletID, ok := outletFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Outlet-Id required")
		return
	}
	o, err := h.Orders.MarkPreparing(r.Context(), outletID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, false))
}

func (h *OrdersHandler) markReady(w http.ResponseWriter, r *http.Request) {
	outletID, ok := outletFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Outlet-Id required")
		return
	}
	o, err := h.Orders.MarkReady(r.Context(), outletID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, false))
}

func (h *OrdersHandler) verifyPickup(w http.ResponseWriter, r *http.Request) {
	outletID, ok := outletFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Outlet-Id required")
		return
	}
	var req pickupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	o, err := h.Orders.VerifyPickup(r.Context(), outletID, chi.URLParam(r, "id"), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, false))
}

func (h *OrdersHandler) rateOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "X-Customer-Id required")
		return
	}
	var req rateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	o, err := h.Orders.Rate(r.Context(), customerID, chi.URLParam(r, "id"), req.Rating, req.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, true))
}

func (h *OrdersHandler) listOffers(w http.ResponseWriter, r *http.Request) {
	outletID := r.URL.Query().Get("outlet_id")
	if outletID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "outlet_id required")
		return
	}
	list, err := h.Offers.ListByOutlet(r.Context(), outletID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
