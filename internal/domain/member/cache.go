package member

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const snapshotKeyPrefix = "member:snapshot:"

// DefaultCacheTTL bounds snapshot staleness for read paths.
const DefaultCacheTTL = 5 * time.Minute

// Cache holds member snapshots in Redis with a TTL. It is read-through for
// display queries only; balance-changing code paths bypass it and re-read the
// row under lock. A nil Redis client turns the cache into a pass-through.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// GetOrLoad returns the cached snapshot or loads and stores it.
func (c *Cache) GetOrLoad(ctx context.Context, id string, load func(context.Context, string) (*Snapshot, error)) (*Snapshot, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, snapshotKeyPrefix+id).Bytes()
		if err == nil {
			var s Snapshot
			if err := json.Unmarshal(raw, &s); err == nil {
				return &s, nil
			}
			// Corrupt entry, drop it and fall through to the loader.
			c.client.Del(ctx, snapshotKeyPrefix+id)
		} else if err != redis.Nil {
			log.Warn().Err(err).Str("member_id", id).Msg("member cache read failed")
		}
	}

	s, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, s)
	return s, nil
}

// Invalidate drops the snapshot. Every ledger/referral write path calls this
// before reporting success.
func (c *Cache) Invalidate(ctx context.Context, ids ...string) {
	if c.client == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = snapshotKeyPrefix + id
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("member_ids", ids).Msg("member cache invalidate failed")
	}
}

func (c *Cache) store(ctx context.Context, s *Snapshot) {
	if c.client == nil || s == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, snapshotKeyPrefix+s.ID, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("member_id", s.ID).Msg("member cache write failed")
	}
}
