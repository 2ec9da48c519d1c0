package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-barter-market/internal/apperr"
	"github.com/ariefcatur/go-barter-market/internal/listings"
	"github.com/ariefcatur/go-barter-market/internal/market"
)

type ListingsHandler struct {
	Service *listings.Service
}

func (h *ListingsHandler) Register(r chi.Router) {
	r.Get("/listings/{id}", h.getListing)
	r.Patch("/listings/{id}", h.updateListing)
	r.Delete("/listings/{id}", h.deleteListing)
}

type ListingResp struct {
	ID          string     `json:"id"`
	SellerID    string     `json:"seller_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Category    string     `json:"category,omitempty"`
	Mode        string     `json:"mode"`
	Price       *string    `json:"price"` // null for barter
	Status      string     `json:"status"`
	ReservedAt  *time.Time `json:"reserved_at,omitempty"`
	SoldAt      *time.Time `json:"sold_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UpdateListingReq is a partial update. Absent fields are left alone; an
// explicit "price": null makes the listing barter-only.
type UpdateListingReq struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	ImageURL    *string         `json:"image_url"`
	Category    *string         `json:"category"`
	Mode        *string         `json:"mode"`
	Price       json.RawMessage `json:"price"`
}

func (req UpdateListingReq) patch() (market.ListingPatch, string) {
	p := market.ListingPatch{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
	}
	if req.Mode != nil {
		m := market.ListingMode(*req.Mode)
		if !m.Valid() {
			return p, "invalid mode"
		}
		p.Mode = &m
	}
	switch {
	case req.Price == nil:
	case bytes.Equal(req.Price, []byte("null")):
		p.ClearPrice = true
	default:
		var d decimal.Decimal
		if err := json.Unmarshal(req.Price, &d); err != nil || d.IsNegative() {
			return p, "invalid price"
		}
		p.Price = &d
	}
	return p, ""
}

func (h *ListingsHandler) getListing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	l, err := h.Service.GetListing(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResp(l))
}

func (h *ListingsHandler) updateListing(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := caller(w, r)
	if !ok {
		return
	}
	var req UpdateListingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	patch, msg := req.patch()
	if msg != "" {
		badRequest(w, msg)
		return
	}
	if patch.Empty() {
		badRequest(w, "nothing to update")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	l, err := h.Service.GetListing(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if l.SellerID != sellerID {
		writeError(w, r, apperr.New(apperr.CodeUnauthorized, "only the seller can edit this listing"))
		return
	}
	if err := h.Service.UpdateListing(ctx, sellerID, l, patch); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingsHandler) deleteListing(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.DeleteListing(ctx, sellerID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func listingResp(l *market.Listing) ListingResp {
	resp := ListingResp{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Title:       l.Title,
		Description: l.Description,
		ImageURL:    l.ImageURL,
		Category:    l.Category,
		Mode:        string(l.Mode),
		Status:      string(l.Status),
		ReservedAt:  l.ReservedAt,
		SoldAt:      l.SoldAt,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.Price != nil {
		s := l.Price.StringFixed(2)
		resp.Price = &s
	}
	return resp
}
