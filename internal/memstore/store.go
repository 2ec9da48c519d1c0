// Package memstore is an in-memory document store with optimistic
// transactions. Each document carries a version; a transaction records the
// versions it read and its commit fails with market.ErrTxConflict when any
// of them moved. It backs local runs and the lifecycle tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-barter-market/internal/market"
)

const (
	Listings = "listings"
	Orders   = "orders"
)

type key struct{ coll, id string }

type entry struct {
	doc     Document
	version uint64
}

type Store struct {
	mu        sync.Mutex
	docs      map[key]*entry
	clock     func() time.Time
	newID     func() string
	conflicts int
}

type Option func(*Store)

// WithClock replaces the server clock.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.clock = fn }
}

func New(opts ...Option) *Store {
	s := &Store{
		docs:  map[key]*entry{},
		clock: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ market.Store = (*Store)(nil)

// Put writes a raw document, replacing any existing one.
func (s *Store) Put(collection, id string, d Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{collection, id}
	var ver uint64
	if e, ok := s.docs[k]; ok {
		ver = e.version
	}
	s.docs[k] = &entry{doc: d.clone(), version: ver + 1}
}

// PutListing stores l, assigning an id when it has none.
func (s *Store) PutListing(l market.Listing) string {
	if l.ID == "" {
		l.ID = s.newID()
	}
	s.Put(Listings, l.ID, encodeListing(l))
	return l.ID
}

// PutOrder stores o, assigning an id when it has none.
func (s *Store) PutOrder(o market.Order) string {
	if o.ID == "" {
		o.ID = s.newID()
	}
	s.Put(Orders, o.ID, encodeOrder(o))
	return o.ID
}

// Document returns a copy of a raw document.
func (s *Store) Document(collection, id string) (Document, bool) {
	d, _, ok := s.read(key{collection, id})
	return d, ok
}

// FailNextCommits makes the next n commits fail with market.ErrTxConflict.
func (s *Store) FailNextCommits(n int) {
	s.mu.Lock()
	s.conflicts = n
	s.mu.Unlock()
}

func (s *Store) read(k key) (Document, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.docs[k]
	if !ok {
		return nil, 0, false
	}
	return e.doc.clone(), e.version, true
}

func (s *Store) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	d, _, ok := s.read(key{Listings, id})
	if !ok {
		return nil, market.ErrNoDocument
	}
	return decodeListing(id, d)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*market.Order, error) {
	d, _, ok := s.read(key{Orders, id})
	if !ok {
		return nil, market.ErrNoDocument
	}
	return decodeOrder(id, d)
}

func (s *Store) OpenOrderForListing(ctx context.Context, listingID string) (*market.Order, error) {
	t := s.begin()
	return t.OpenOrderForListing(ctx, listingID)
}

func (s *Store) PatchListing(ctx context.Context, id string, p market.ListingPatch) (market.ListingStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.docs[key{Listings, id}]
	if !ok {
		return "", market.ErrNoDocument
	}
	status := market.ListingStatus(e.doc.str(fStatus))
	if status == market.ListingSold || status == market.ListingDeleted {
		return status, market.ErrPreconditionFailed
	}
	doc := e.doc.clone()
	for f, v := range encodePatch(p, s.clock()) {
		doc[f] = v
	}
	e.doc = doc
	e.version++
	return status, nil
}

func (s *Store) WithTransaction(ctx context.Context, fn market.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.begin()
	if err := fn(ctx, t); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) begin() *tx {
	return &tx{
		s:      s,
		now:    s.clock(),
		reads:  map[key]uint64{},
		writes: map[key]Document{},
	}
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("%w: injected", market.ErrTxConflict)
	}
	for k, ver := range t.reads {
		var cur uint64
		if e, ok := s.docs[k]; ok {
			cur = e.version
		}
		if cur != ver {
			return fmt.Errorf("%w: %s/%s changed", market.ErrTxConflict, k.coll, k.id)
		}
	}
	for k, w := range t.writes {
		e, ok := s.docs[k]
		if !ok {
			e = &entry{doc: Document{}}
			s.docs[k] = e
		}
		doc := e.doc.clone()
		for f, v := range w {
			doc[f] = v
		}
		e.doc = doc
		e.version++
	}
	return nil
}

type tx struct {
	s      *Store
	now    time.Time
	reads  map[key]uint64
	writes map[key]Document
}

func (t *tx) Now() time.Time { return t.now }

// get returns the document as this attempt sees it: the stored version
// overlaid with the attempt's own writes.
func (t *tx) get(k key) (Document, bool) {
	d, ver, ok := t.s.read(k)
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = ver
	}
	if w, has := t.writes[k]; has {
		if !ok {
			d, ok = Document{}, true
		}
		for f, v := range w {
			d[f] = v
		}
	}
	return d, ok
}

func (t *tx) set(k key, fields Document) {
	w, ok := t.writes[k]
	if !ok {
		w = Document{}
		t.writes[k] = w
	}
	for f, v := range fields {
		w[f] = v
	}
}

func (t *tx) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	d, ok := t.get(key{Listings, id})
	if !ok {
		return nil, market.ErrNoDocument
	}
	return decodeListing(id, d)
}

func (t *tx) GetOrder(ctx context.Context, id string) (*market.Order, error) {
	d, ok := t.get(key{Orders, id})
	if !ok {
		return nil, market.ErrNoDocument
	}
	return decodeOrder(id, d)
}

func (t *tx) OpenOrderForListing(ctx context.Context, listingID string) (*market.Order, error) {
	candidates := map[key]bool{}
	t.s.mu.Lock()
	for k, e := range t.s.docs {
		if k.coll == Orders && e.doc.str(fProductID) == listingID {
			candidates[k] = true
		}
	}
	t.s.mu.Unlock()
	for k := range t.writes {
		if k.coll == Orders {
			candidates[k] = true
		}
	}

	var open []*market.Order
	for k := range candidates {
		d, ok := t.get(k)
		if !ok || d.str(fProductID) != listingID || market.OrderStatus(d.str(fStatus)) != market.OrderPending {
			continue
		}
		o, err := decodeOrder(k.id, d)
		if err != nil {
			return nil, err
		}
		open = append(open, o)
	}
	if len(open) == 0 {
		return nil, market.ErrNoDocument
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.After(open[j].CreatedAt) })
	return open[0], nil
}

func (t *tx) CreateOrder(ctx context.Context, o *market.Order) (string, error) {
	id := t.s.newID()
	t.set(key{Orders, id}, encodeOrder(*o))
	return id, nil
}

func (t *tx) UpdateListing(ctx context.Context, id string, u market.ListingUpdate) error {
	k := key{Listings, id}
	if _, ok := t.get(k); !ok {
		return market.ErrNoDocument
	}
	fields := Document{fStatus: string(u.Status), fUpdatedAt: t.now}
	if u.ReservedAt != nil {
		fields[fReservedAt] = *u.ReservedAt
	}
	if u.SoldAt != nil {
		fields[fSoldAt] = *u.SoldAt
	}
	t.set(k, fields)
	return nil
}

func (t *tx) UpdateOrderStatus(ctx context.Context, id string, st market.OrderStatus) error {
	k := key{Orders, id}
	if _, ok := t.get(k); !ok {
		return market.ErrNoDocument
	}
	t.set(k, Document{fStatus: string(st), fUpdatedAt: t.now})
	return nil
}
