package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// OrderStatus is the cached view of an order, used for reads only.
// Lifecycle decisions always re-read the store.
type OrderStatus struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Status    string `json:"status"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
}

type StatusCache struct{ RDB redis.Cmdable }

// Get returns the cached status, or ok=false on a miss.
func (c *StatusCache) Get(ctx context.Context, orderID string) (OrderStatus, bool, error) {
	var s OrderStatus
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, false, err
	}
	return s, true, nil
}

func (c *StatusCache) Set(ctx context.Context, s OrderStatus) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, s.OrderID), b, TTLStatusCache).Err()
}

// Idempotency stores the first successful response per buyer and key.
type Idempotency struct{ RDB redis.Cmdable }

func (i *Idempotency) Lookup(ctx context.Context, buyerID, key string) ([]byte, bool, error) {
	b, err := i.RDB.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, buyerID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Remember keeps resp unless a response is already stored for the key.
func (i *Idempotency) Remember(ctx context.Context, buyerID, key string, resp []byte) error {
	return i.RDB.SetNX(ctx, fmt.Sprintf(KeyIdemOrderCreate, buyerID, key), resp, TTLIdempotency).Err()
}
