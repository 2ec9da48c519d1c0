package memstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-barter-market/internal/market"
	"github.com/ariefcatur/go-barter-market/internal/timestamp"
)

// Document field names, in the camelCase the documents were first written with.
const (
	fSellerID    = "sellerId"
	fBuyerID     = "buyerId"
	fProductID   = "productId"
	fTitle       = "title"
	fDescription = "description"
	fImageURL    = "imageUrl"
	fCategory    = "category"
	fMode        = "mode"
	fPrice       = "price"
	fStatus      = "status"
	fReservedAt  = "reservedAt"
	fSoldAt      = "soldAt"
	fCreatedAt   = "createdAt"
	fUpdatedAt   = "updatedAt"
)

// Document is a raw stored document. Timestamp fields may hold any shape
// timestamp.Resolve understands.
type Document map[string]any

func (d Document) clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (d Document) str(k string) string {
	s, _ := d[k].(string)
	return s
}

func decodeListing(id string, d Document) (*market.Listing, error) {
	price, err := decodePrice(d[fPrice])
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", id, err)
	}
	l := &market.Listing{
		ID:          id,
		SellerID:    d.str(fSellerID),
		Title:       d.str(fTitle),
		Description: d.str(fDescription),
		ImageURL:    d.str(fImageURL),
		Category:    d.str(fCategory),
		Mode:        market.ListingMode(d.str(fMode)),
		Price:       price,
		Status:      market.ListingStatus(d.str(fStatus)),
		ReservedAt:  timestamp.ResolvePtr(d[fReservedAt]),
		SoldAt:      timestamp.ResolvePtr(d[fSoldAt]),
	}
	if !l.Status.Valid() {
		return nil, fmt.Errorf("listing %s: unknown status %q", id, l.Status)
	}
	if t := timestamp.ResolvePtr(d[fCreatedAt]); t != nil {
		l.CreatedAt = *t
	}
	if t := timestamp.ResolvePtr(d[fUpdatedAt]); t != nil {
		l.UpdatedAt = *t
	}
	return l, nil
}

func encodeListing(l market.Listing) Document {
	d := Document{
		fSellerID:    l.SellerID,
		fTitle:       l.Title,
		fDescription: l.Description,
		fImageURL:    l.ImageURL,
		fCategory:    l.Category,
		fMode:        string(l.Mode),
		fStatus:      string(l.Status),
		fCreatedAt:   l.CreatedAt,
		fUpdatedAt:   l.UpdatedAt,
	}
	if l.Price != nil {
		d[fPrice] = l.Price.String()
	}
	if l.ReservedAt != nil {
		d[fReservedAt] = *l.ReservedAt
	}
	if l.SoldAt != nil {
		d[fSoldAt] = *l.SoldAt
	}
	return d
}

func decodeOrder(id string, d Document) (*market.Order, error) {
	price, err := decodePrice(d[fPrice])
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	o := &market.Order{
		ID:        id,
		BuyerID:   d.str(fBuyerID),
		SellerID:  d.str(fSellerID),
		ProductID: d.str(fProductID),
		Price:     price,
		Title:     d.str(fTitle),
		ImageURL:  d.str(fImageURL),
		Status:    market.OrderStatus(d.str(fStatus)),
	}
	if !o.Status.Valid() {
		return nil, fmt.Errorf("order %s: unknown status %q", id, o.Status)
	}
	if t := timestamp.ResolvePtr(d[fCreatedAt]); t != nil {
		o.CreatedAt = *t
	}
	if t := timestamp.ResolvePtr(d[fUpdatedAt]); t != nil {
		o.UpdatedAt = *t
	}
	return o, nil
}

func encodeOrder(o market.Order) Document {
	d := Document{
		fBuyerID:   o.BuyerID,
		fSellerID:  o.SellerID,
		fProductID: o.ProductID,
		fTitle:     o.Title,
		fImageURL:  o.ImageURL,
		fStatus:    string(o.Status),
		fCreatedAt: o.CreatedAt,
		fUpdatedAt: o.UpdatedAt,
	}
	if o.Price != nil {
		d[fPrice] = o.Price.String()
	}
	return d
}

func encodePatch(p market.ListingPatch, now time.Time) Document {
	d := Document{fUpdatedAt: now}
	if p.Title != nil {
		d[fTitle] = *p.Title
	}
	if p.Description != nil {
		d[fDescription] = *p.Description
	}
	if p.ImageURL != nil {
		d[fImageURL] = *p.ImageURL
	}
	if p.Category != nil {
		d[fCategory] = *p.Category
	}
	if p.Mode != nil {
		d[fMode] = string(*p.Mode)
	}
	switch {
	case p.ClearPrice:
		d[fPrice] = nil
	case p.Price != nil:
		d[fPrice] = p.Price.String()
	}
	return d
}

func decodePrice(v any) (*decimal.Decimal, error) {
	var (
		p   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		p = t
	case string:
		p, err = decimal.NewFromString(t)
	case float64:
		p = decimal.NewFromFloat(t)
	case int:
		p = decimal.NewFromInt(int64(t))
	case int64:
		p = decimal.NewFromInt(t)
	default:
		return nil, fmt.Errorf("unsupported price type %T", v)
	}
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	return &p, nil
}
