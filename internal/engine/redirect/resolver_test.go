package redirect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"linkr/internal/engine/links"
)

// fakeStore implements LinkStore in memory with call counting.
type fakeStore struct {
	mu          sync.Mutex
	links       map[string]*links.Link // domain + "/" + lowercased key
	domains     map[string]*links.Link
	err         error
	linkCalls   int
	domainCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links:   make(map[string]*links.Link),
		domains: make(map[string]*links.Link),
	}
}

func (s *fakeStore) addLink(l *links.Link) {
	s.links[l.Domain+"/"+lower(l.Key)] = l
}

func lower(k string) string {
	b := []byte(k)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func (s *fakeStore) GetByDomainKey(ctx context.Context, domain, key string) (*links.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.links[domain+"/"+lower(key)], nil
}

func (s *fakeStore) GetDomain(ctx context.Context, domain string) (*links.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domainCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.domains[domain], nil
}

func waitForCacheEntry(t *testing.T, cache *LinkCache, domain, key string) *links.Link {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if link, err := cache.Get(context.Background(), domain, key); err == nil {
			return link
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("cache was not populated in time")
	return nil
}

func TestResolver_CacheHitSkipsStore(t *testing.T) {
	cache := NewLinkCache(newFakeRedis(), time.Second)
	store := newFakeStore()
	r := NewResolver(cache, store, time.Second, zerolog.Nop())

	cached := &links.Link{ID: "link1", URL: "https://example.com"}
	cache.Put(context.Background(), "go.example", "launch", cached)

	got, err := r.Resolve(context.Background(), "go.example", "launch")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.ID != "link1" {
		t.Errorf("Expected cached record, got %+v", got)
	}
	if store.linkCalls != 0 {
		t.Errorf("Store should not be queried on a cache hit, got %d calls", store.linkCalls)
	}
}

func TestResolver_MissPopulatesCache(t *testing.T) {
	cache := NewLinkCache(newFakeRedis(), time.Second)
	store := newFakeStore()
	store.addLink(&links.Link{ID: "link1", Domain: "go.example", Key: "launch", URL: "https://example.com/launch"})
	r := NewResolver(cache, store, time.Second, zerolog.Nop())

	got, err := r.Resolve(context.Background(), "go.example", "launch")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got == nil || got.URL != "https://example.com/launch" {
		t.Fatalf("Expected store record, got %+v", got)
	}

	populated := waitForCacheEntry(t, cache, "go.example", "launch")
	if populated.ID != "link1" {
		t.Errorf("Expected write-back of link1, got %+v", populated)
	}
}

func TestResolver_RootKeyQueriesDomain(t *testing.T) {
	cache := NewLinkCache(newFakeRedis(), time.Second)
	store := newFakeStore()
	store.domains["go.example"] = &links.Link{ID: "dom1", Domain: "go.example", Key: links.RootKey, URL: "https://example.com"}
	r := NewResolver(cache, store, time.Second, zerolog.Nop())

	for _, key := range []string{"", links.RootKey} {
		got, err := r.Resolve(context.Background(), "go.example", key)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", key, err)
		}
		if got == nil || got.ID != "dom1" {
			t.Errorf("Resolve(%q): expected domain record, got %+v", key, got)
		}
	}
	if store.linkCalls != 0 {
		t.Errorf("Root lookups must hit the domain entity, got %d link queries", store.linkCalls)
	}
}

func TestResolver_MissEverywhere(t *testing.T) {
	cache := NewLinkCache(newFakeRedis(), time.Second)
	r := NewResolver(cache, newFakeStore(), time.Second, zerolog.Nop())

	got, err := r.Resolve(context.Background(), "go.example", "nope")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for unknown link, got %+v", got)
	}
}

func TestResolver_CacheErrorFallsThrough(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	cache := NewLinkCache(rdb, time.Second)
	store := newFakeStore()
	store.addLink(&links.Link{ID: "link1", Domain: "go.example", Key: "launch", URL: "https://example.com"})
	r := NewResolver(cache, store, time.Second, zerolog.Nop())

	got, err := r.Resolve(context.Background(), "go.example", "launch")
	if err != nil {
		t.Fatalf("Cache failure must not fail the request: %v", err)
	}
	if got == nil || got.ID != "link1" {
		t.Errorf("Expected store record despite cache failure, got %+v", got)
	}
}

func TestResolver_StoreErrorSurfaces(t *testing.T) {
	cache := NewLinkCache(newFakeRedis(), time.Second)
	store := newFakeStore()
	store.err = errors.New("store down")
	r := NewResolver(cache, store, time.Second, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "go.example", "launch")
	if err == nil {
		t.Fatal("Expected store error to surface for placeholder fallback")
	}
}

func TestResolver_ConcurrentMissesLastWriteWins(t *testing.T) {
	cache := NewLinkCache(newFakeRedis(), time.Second)
	store := newFakeStore()
	store.addLink(&links.Link{ID: "link1", Domain: "go.example", Key: "hot", URL: "https://example.com"})
	r := NewResolver(cache, store, time.Second, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), "go.example", "hot")
			if err != nil || got == nil || got.ID != "link1" {
				t.Errorf("Concurrent resolve: got %+v err %v", got, err)
			}
		}()
	}
	wg.Wait()

	// No single-flight: each miss may query the store independently.
	if store.linkCalls == 0 {
		t.Error("Expected at least one store query")
	}

	populated := waitForCacheEntry(t, cache, "go.example", "hot")
	if populated.ID != "link1" {
		t.Errorf("Expected consistent record after concurrent populates, got %+v", populated)
	}
}
