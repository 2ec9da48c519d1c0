package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-barter-market/internal/market"
	"github.com/ariefcatur/go-barter-market/internal/timestamp"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const listingColumns = `id, seller_id, title, description, image_url, category, mode,
	price::text, status, reserved_at, sold_at, created_at, updated_at`

const orderColumns = `id, buyer_id, seller_id, product_id, price::text, title, image_url,
	status, created_at, updated_at`

func scanListing(row pgx.Row) (*market.Listing, error) {
	var (
		l                  market.Listing
		mode, status       string
		price              pgtype.Text
		reservedAt, soldAt pgtype.Timestamptz
	)
	err := row.Scan(&l.ID, &l.SellerID, &l.Title, &l.Description, &l.ImageURL, &l.Category, &mode,
		&price, &status, &reservedAt, &soldAt, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	if l.Price, err = parsePrice(price); err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.ID, err)
	}
	l.Mode = market.ListingMode(mode)
	l.Status = market.ListingStatus(status)
	if !l.Status.Valid() {
		return nil, fmt.Errorf("listing %s: unknown status %q", l.ID, status)
	}
	l.ReservedAt = timestamp.ResolvePtr(reservedAt)
	l.SoldAt = timestamp.ResolvePtr(soldAt)
	return &l, nil
}

func scanOrder(row pgx.Row) (*market.Order, error) {
	var (
		o      market.Order
		status string
		price  pgtype.Text
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ProductID, &price, &o.Title, &o.ImageURL,
		&status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if o.Price, err = parsePrice(price); err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status = market.OrderStatus(status)
	if !o.Status.Valid() {
		return nil, fmt.Errorf("order %s: unknown status %q", o.ID, status)
	}
	return &o, nil
}

func parsePrice(t pgtype.Text) (*decimal.Decimal, error) {
	if !t.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(t.String)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", t.String, err)
	}
	return &d, nil
}

// priceArg encodes a price for a NUMERIC column; nil stays NULL.
func priceArg(p *decimal.Decimal) *string {
	if p == nil {
		return nil
	}
	s := p.String()
	return &s
}

func getListing(ctx context.Context, q querier, id string, forUpdate bool) (*market.Listing, error) {
	sql := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanListing(q.QueryRow(ctx, sql, id))
}

func getOrder(ctx context.Context, q querier, id string, forUpdate bool) (*market.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanOrder(q.QueryRow(ctx, sql, id))
}

func openOrderForListing(ctx context.Context, q querier, listingID string, forUpdate bool) (*market.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders
		WHERE product_id = $1 AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanOrder(q.QueryRow(ctx, sql, listingID))
}

// Codes a transaction attempt may be re-run after: serialization failure,
// deadlock, and a lost race on the one-pending-order index.
var retryable = map[string]bool{
	"40001": true,
	"40P01": true,
	"23505": true,
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryable[pgErr.Code] {
		return fmt.Errorf("%w: %s (%s)", market.ErrTxConflict, pgErr.Message, pgErr.Code)
	}
	return err
}
