package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a sellable or tradeable item. Price is nil for pure barter.
type Listing struct {
	ID          string
	SellerID    string
	Title       string
	Description string
	ImageURL    string
	Category    string
	Mode        ListingMode
	Price       *decimal.Decimal
	Status      ListingStatus // lihat status.go
	ReservedAt  *time.Time    // meaningful only while Status == reserved
	SoldAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Order is a buyer's purchase/reservation request against one listing.
// Price, Title and ImageURL are a snapshot taken at creation.
type Order struct {
	ID        string
	BuyerID   string
	SellerID  string
	ProductID string
	Price     *decimal.Decimal
	Title     string
	ImageURL  string
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListingUpdate is the lifecycle-owned part of a listing write. ReservedAt
// and SoldAt are written only when non-nil.
type ListingUpdate struct {
	Status     ListingStatus
	ReservedAt *time.Time
	SoldAt     *time.Time
}

// ListingPatch holds the seller-editable fields; nil means unchanged.
// Status is deliberately absent.
type ListingPatch struct {
	Title       *string
	Description *string
	ImageURL    *string
	Category    *string
	Mode        *ListingMode
	Price       *decimal.Decimal
	ClearPrice  bool // turn the listing into pure barter
}

func (p ListingPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ImageURL == nil &&
		p.Category == nil && p.Mode == nil && p.Price == nil && !p.ClearPrice
}

// Snapshot builds the pending order a buyer places against l.
func (l *Listing) Snapshot(buyerID string, now time.Time) *Order {
	o := &Order{
		BuyerID:   buyerID,
		SellerID:  l.SellerID,
		ProductID: l.ID,
		Title:     l.Title,
		ImageURL:  l.ImageURL,
		Status:    OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if l.Price != nil {
		price := *l.Price
		o.Price = &price
	}
	return o
}
