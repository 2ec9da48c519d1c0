package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-barter-market/internal/market"
)

// Store runs the lifecycle against postgres. Transactions are SERIALIZABLE
// and lock the rows they read; contention comes back as
// market.ErrTxConflict.
type Store struct{ DB *pgxpool.Pool }

var _ market.Store = (*Store)(nil)

func (s *Store) WithTransaction(ctx context.Context, fn market.TxFunc) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// now() is the transaction start on the server clock
	var now time.Time
	if err := tx.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		return classify(err)
	}
	if err := fn(ctx, &pgTx{tx: tx, now: now.UTC()}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	return getListing(ctx, s.DB, id, false)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*market.Order, error) {
	return getOrder(ctx, s.DB, id, false)
}

func (s *Store) OpenOrderForListing(ctx context.Context, listingID string) (*market.Order, error) {
	return openOrderForListing(ctx, s.DB, listingID, false)
}

// PatchListing updates the editable columns in one statement guarded on
// the listing being neither sold nor deleted.
func (s *Store) PatchListing(ctx context.Context, id string, p market.ListingPatch) (market.ListingStatus, error) {
	var mode *string
	if p.Mode != nil {
		m := string(*p.Mode)
		mode = &m
	}
	var status string
	err := s.DB.QueryRow(ctx, `
		UPDATE listings SET
			title       = COALESCE($2, title),
			description = COALESCE($3, description),
			image_url   = COALESCE($4, image_url),
			category    = COALESCE($5, category),
			mode        = COALESCE($6, mode),
			price       = CASE WHEN $7 THEN NULL ELSE COALESCE($8::numeric, price) END,
			updated_at  = now()
		WHERE id = $1 AND status NOT IN ('sold', 'deleted')
		RETURNING status`,
		id, p.Title, p.Description, p.ImageURL, p.Category, mode, p.ClearPrice, priceArg(p.Price),
	).Scan(&status)
	if err == nil {
		// status is not patchable, so the returned row has the status seen at the write
		return market.ListingStatus(status), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("patch listing: %w", err)
	}

	err = s.DB.QueryRow(ctx, `SELECT status FROM listings WHERE id = $1`, id).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", market.ErrNoDocument
	case err != nil:
		return "", fmt.Errorf("patch listing: %w", err)
	default:
		return market.ListingStatus(status), market.ErrPreconditionFailed
	}
}

type pgTx struct {
	tx  pgx.Tx
	now time.Time
}

func (t *pgTx) Now() time.Time { return t.now }

func (t *pgTx) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	return getListing(ctx, t.tx, id, true)
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (*market.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *pgTx) OpenOrderForListing(ctx context.Context, listingID string) (*market.Order, error) {
	return openOrderForListing(ctx, t.tx, listingID, true)
}

func (t *pgTx) CreateOrder(ctx context.Context, o *market.Order) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (buyer_id, seller_id, product_id, price, title, image_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $8)
		RETURNING id`,
		o.BuyerID, o.SellerID, o.ProductID, priceArg(o.Price), o.Title, o.ImageURL, string(o.Status), t.now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (t *pgTx) UpdateListing(ctx context.Context, id string, u market.ListingUpdate) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE listings SET
			status      = $2,
			reserved_at = COALESCE($3, reserved_at),
			sold_at     = COALESCE($4, sold_at),
			updated_at  = $5
		WHERE id = $1`,
		id, string(u.Status), u.ReservedAt, u.SoldAt, t.now)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return market.ErrNoDocument
	}
	return nil
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id string, s market.OrderStatus) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(s), t.now)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return market.ErrNoDocument
	}
	return nil
}
