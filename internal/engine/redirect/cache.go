package redirect

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"linkr/internal/engine/links"
)

// ErrCacheMiss is returned when no entry exists for a (domain, key) pair.
// Callers treat any other error the same way: fall through to the durable
// store.
var ErrCacheMiss = errors.New("redirect: cache miss")

// RedisClient is the slice of the go-redis API the cache needs. Kept
// narrow so tests can fake it without a server.
type RedisClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

// LinkCache stores denormalized link records in Redis, one hash per
// lowercased domain with lowercased keys as fields. Domain records live
// under the _root field. Entries have no TTL; the write path overwrites or
// deletes them on every link update.
type LinkCache struct {
	rdb     RedisClient
	timeout time.Duration
}

func NewLinkCache(rdb RedisClient, timeout time.Duration) *LinkCache {
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	return &LinkCache{rdb: rdb, timeout: timeout}
}

// Get looks up a link. Key matching is case-insensitive; an empty key
// resolves the domain's root record.
func (c *LinkCache) Get(ctx context.Context, domain, key string) (*links.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.rdb.HGet(ctx, cacheKey(domain), cacheField(key)).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var link links.Link
	if err := json.Unmarshal([]byte(data), &link); err != nil {
		// A corrupt entry is indistinguishable from a miss; the
		// resolver will overwrite it.
		return nil, ErrCacheMiss
	}
	return &link, nil
}

// Put unconditionally overwrites the entry. Last writer wins.
func (c *LinkCache) Put(ctx context.Context, domain, key string, link *links.Link) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.rdb.HSet(ctx, cacheKey(domain), cacheField(key), string(data)).Err()
}

// Delete removes a stale entry, used when a link's domain or key changes.
func (c *LinkCache) Delete(ctx context.Context, domain, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.rdb.HDel(ctx, cacheKey(domain), cacheField(key)).Err()
}

func cacheKey(domain string) string {
	return strings.ToLower(domain)
}

func cacheField(key string) string {
	if key == "" {
		return links.RootKey
	}
	return strings.ToLower(key)
}
