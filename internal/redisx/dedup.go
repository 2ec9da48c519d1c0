package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed event ids for TTLDedup.
type Deduper struct {
	RDB     redis.Cmdable
	Service string
}

// FirstSeen atomically marks id as processed and reports whether this call
// was the first to do so.
func (d *Deduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	key := fmt.Sprintf(KeyDedup, d.Service, id)
	return d.RDB.SetNX(ctx, key, "1", TTLDedup).Result()
}

// Forget drops the mark so a failed event can be processed again.
func (d *Deduper) Forget(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}
