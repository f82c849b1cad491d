package redirect

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"linkr/internal/engine/links"
)

// LinkStore is the durable source of truth consulted on cache misses.
// Implementations return (nil, nil) when no record exists.
type LinkStore interface {
	GetByDomainKey(ctx context.Context, domain, key string) (*links.Link, error)
	GetDomain(ctx context.Context, domain string) (*links.Link, error)
}

// Resolver owns the miss-then-populate protocol: cache first, durable
// store on a miss, then a best-effort async write-back. Concurrent misses
// for the same key may each query the store; last cache write wins.
type Resolver struct {
	cache   *LinkCache
	store   LinkStore
	timeout time.Duration
	logger  zerolog.Logger
}

func NewResolver(cache *LinkCache, store LinkStore, storeTimeout time.Duration, logger zerolog.Logger) *Resolver {
	if storeTimeout == 0 {
		storeTimeout = 2 * time.Second
	}
	return &Resolver{cache: cache, store: store, timeout: storeTimeout, logger: logger}
}

// Resolve returns the link record for (domain, key), or nil when neither
// the cache nor the store has one. Cache failures degrade to store
// lookups; store failures are returned so the caller can fall back to the
// placeholder page.
func (r *Resolver) Resolve(ctx context.Context, domain, key string) (*links.Link, error) {
	link, err := r.cache.Get(ctx, domain, key)
	if err == nil {
		cacheLookupsTotal.WithLabelValues(cacheHit).Inc()
		return link, nil
	}
	if errors.Is(err, ErrCacheMiss) {
		cacheLookupsTotal.WithLabelValues(cacheMiss).Inc()
	} else {
		// Unavailable cache is handled exactly like a miss.
		cacheLookupsTotal.WithLabelValues(cacheError).Inc()
		r.logger.Warn().Err(err).Str("domain", domain).Msg("link cache unavailable")
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if key == "" || key == links.RootKey {
		link, err = r.store.GetDomain(storeCtx, domain)
	} else {
		link, err = r.store.GetByDomainKey(storeCtx, domain, key)
	}
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, nil
	}

	// Write-back happens off the request path with a detached context so
	// a slow cache never delays the redirect and a canceled request
	// doesn't abort the populate.
	go func(l links.Link) {
		if err := r.cache.Put(context.Background(), domain, key, &l); err != nil {
			r.logger.Debug().Err(err).Str("domain", domain).Str("key", key).Msg("cache write-back failed")
		}
	}(*link)

	return link, nil
}
