package httpx

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-barter-market/internal/market"
	"github.com/ariefcatur/go-barter-market/internal/orders"
	"github.com/ariefcatur/go-barter-market/internal/redisx"
)

type OrdersHandler struct {
	Service *orders.Service
	Idem    *redisx.Idempotency // optional
	Cache   *redisx.StatusCache // optional; holds terminal orders only
}

type CreateOrderReq struct {
	ProductID string `json:"product_id"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/confirm", h.settle(h.Service.ConfirmOrder))
	r.Post("/orders/{id}/reject", h.settle(h.Service.RejectOrder))
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := caller(w, r)
	if !ok {
		return
	}
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.ProductID == "" {
		badRequest(w, "missing product_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Idempotency-Key: balas ulang response sukses pertama
	idemKey := r.Header.Get("Idempotency-Key")
	if h.Idem != nil && idemKey != "" {
		if b, ok, err := h.Idem.Lookup(ctx, buyerID, idemKey); err != nil {
			log.Printf("http: idempotency lookup: %v", err)
		} else if ok {
			w.Header().Set("Idempotent-Replayed", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(b)
			return
		}
	}

	res, err := h.Service.CreateOrder(ctx, buyerID, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, _ := json.Marshal(res)
	if h.Idem != nil && idemKey != "" {
		if err := h.Idem.Remember(ctx, buyerID, idemKey, b); err != nil {
			log.Printf("http: idempotency remember: %v", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(b)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	callerID, ok := caller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		if s, hit, err := h.Cache.Get(ctx, orderID); err == nil && hit &&
			(callerID == s.BuyerID || callerID == s.SellerID) {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// 2) fallback store
	o, err := h.Service.GetOrder(ctx, callerID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s := statusView(o)
	// hanya status final yang di-cache; pending masih bisa berubah
	if h.Cache != nil && o.Status.Terminal() {
		if err := h.Cache.Set(ctx, s); err != nil {
			log.Printf("http: cache order status: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *OrdersHandler) settle(op func(ctx context.Context, sellerID, orderID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, ok := caller(w, r)
		if !ok {
			return
		}
		orderID := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := op(ctx, sellerID, orderID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func statusView(o *market.Order) redisx.OrderStatus {
	return redisx.OrderStatus{
		OrderID:   o.ID,
		ProductID: o.ProductID,
		Status:    string(o.Status),
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
	}
}
