package redirect

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"linkr/internal/engine/links"
)

// fakeRedis implements RedisClient over a plain map.
type fakeRedis struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: make(map[string]map[string]string)}
}

func (f *fakeRedis) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	val, ok := f.hashes[key][field]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.hashes[key] == nil {
		f.hashes[key] = make(map[string]string)
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.hashes[key][values[i].(string)] = values[i+1].(string)
	}
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	for _, field := range fields {
		delete(f.hashes[key], field)
	}
	cmd.SetVal(int64(len(fields)))
	return cmd
}

func TestLinkCache_PutGet(t *testing.T) {
	rdb := newFakeRedis()
	cache := NewLinkCache(rdb, time.Second)
	ctx := context.Background()

	link := &links.Link{ID: "link1", Domain: "go.example", Key: "ABC", URL: "https://example.com"}
	if err := cache.Put(ctx, "go.example", "ABC", link); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Lookups are case-insensitive on key
	for _, key := range []string{"ABC", "abc", "AbC"} {
		got, err := cache.Get(ctx, "go.example", key)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", key, err)
		}
		if got.ID != "link1" {
			t.Errorf("Get(%q): expected link1, got %s", key, got.ID)
		}
		// Stored case survives the round trip
		if got.Key != "ABC" {
			t.Errorf("Get(%q): expected stored key ABC, got %s", key, got.Key)
		}
	}
}

func TestLinkCache_Miss(t *testing.T) {
	cache := NewLinkCache(newFakeRedis(), time.Second)

	_, err := cache.Get(context.Background(), "go.example", "nope")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestLinkCache_ErrorSurfacesAsError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	cache := NewLinkCache(rdb, time.Second)

	_, err := cache.Get(context.Background(), "go.example", "abc")
	if err == nil {
		t.Fatal("Expected error from unavailable cache")
	}
	if errors.Is(err, ErrCacheMiss) {
		t.Error("Infrastructure errors should be distinguishable from misses")
	}
}

func TestLinkCache_RootField(t *testing.T) {
	rdb := newFakeRedis()
	cache := NewLinkCache(rdb, time.Second)
	ctx := context.Background()

	link := &links.Link{ID: "dom1", Domain: "go.example", Key: links.RootKey, URL: "https://example.com"}
	if err := cache.Put(ctx, "go.example", "", link); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, ok := rdb.hashes["go.example"][links.RootKey]; !ok {
		t.Fatalf("Expected root record under %q field, got %v", links.RootKey, rdb.hashes)
	}

	got, err := cache.Get(ctx, "go.example", "")
	if err != nil {
		t.Fatalf("Get root failed: %v", err)
	}
	if got.ID != "dom1" {
		t.Errorf("Expected dom1, got %s", got.ID)
	}
}

func TestLinkCache_LastWriteWins(t *testing.T) {
	rdb := newFakeRedis()
	cache := NewLinkCache(rdb, time.Second)
	ctx := context.Background()

	first := &links.Link{ID: "link1", URL: "https://old.example.com"}
	second := &links.Link{ID: "link1", URL: "https://new.example.com"}

	cache.Put(ctx, "go.example", "abc", first)
	cache.Put(ctx, "go.example", "abc", second)

	got, err := cache.Get(ctx, "go.example", "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.URL != "https://new.example.com" {
		t.Errorf("Expected most recent write, got %s", got.URL)
	}
}

func TestLinkCache_Delete(t *testing.T) {
	rdb := newFakeRedis()
	cache := NewLinkCache(rdb, time.Second)
	ctx := context.Background()

	cache.Put(ctx, "go.example", "Old", &links.Link{ID: "link1"})
	if err := cache.Delete(ctx, "go.example", "OLD"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := cache.Get(ctx, "go.example", "old"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected miss after delete, got %v", err)
	}
}

func TestLinkCache_CorruptEntryIsMiss(t *testing.T) {
	rdb := newFakeRedis()
	rdb.hashes["go.example"] = map[string]string{"abc": "{not json"}
	cache := NewLinkCache(rdb, time.Second)

	_, err := cache.Get(context.Background(), "go.example", "abc")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Corrupt entry should read as a miss, got %v", err)
	}
}

func TestLinkCache_SerializationShape(t *testing.T) {
	rdb := newFakeRedis()
	cache := NewLinkCache(rdb, time.Second)

	expires := time.Now().Add(time.Hour).Unix()
	link := &links.Link{
		ID:        "link1",
		Domain:    "go.example",
		Key:       "promo",
		URL:       "https://example.com",
		Geo:       links.GeoTargets{"DE": "https://example.de"},
		ExpiresAt: &expires,
	}
	cache.Put(context.Background(), "go.example", "promo", link)

	raw := rdb.hashes["go.example"]["promo"]
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("Cached value is not JSON: %v", err)
	}
	if decoded["url"] != "https://example.com" {
		t.Errorf("Unexpected cached url: %v", decoded["url"])
	}
}
