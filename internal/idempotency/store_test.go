package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// memCache is an in-memory cache.Cache for tests.
type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func TestPutGetRoundTrip(t *testing.T) {
	s := New(newMemCache(), 0)
	ctx := context.Background()

	payload := json.RawMessage(`{"id":42}`)
	if err := s.Put(ctx, "fp-1", payload); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := s.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected hit for fresh record")
	}
	if string(got) != `{"id":42}` {
		t.Fatalf("payload mismatch: %s", got)
	}
}

func TestGetMissingFingerprint(t *testing.T) {
	s := New(newMemCache(), 0)

	_, found, err := s.Get(context.Background(), "never-recorded")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestFreshnessWindowBoundary(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		age      time.Duration
		wantHit  bool
		describe string
	}{
		{299 * time.Second, true, "just inside the window"},
		{300 * time.Second, false, "exactly at the window"},
		{301 * time.Second, false, "past the window"},
	}
	for _, tt := range tests {
		t.Run(tt.describe, func(t *testing.T) {
			s := New(newMemCache(), 300*time.Second)
			now := base
			s.now = func() time.Time { return now }

			ctx := context.Background()
			if err := s.Put(ctx, "fp", json.RawMessage(`"ok"`)); err != nil {
				t.Fatalf("put: %v", err)
			}

			now = base.Add(tt.age)
			_, found, err := s.Get(ctx, "fp")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if found != tt.wantHit {
				t.Fatalf("age %v: found=%v, want %v", tt.age, found, tt.wantHit)
			}
		})
	}
}

func TestStaleRecordEvicted(t *testing.T) {
	mem := newMemCache()
	s := New(mem, 300*time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	_ = s.Put(ctx, "fp", json.RawMessage(`"ok"`))

	now = now.Add(10 * time.Minute)
	if _, found, _ := s.Get(ctx, "fp"); found {
		t.Fatal("stale record returned")
	}

	// The stale entry is physically dropped on read.
	if _, ok, _ := mem.Get(ctx, "fp"); ok {
		t.Fatal("stale record left in cache")
	}
}

func TestPutOverwrites(t *testing.T) {
	s := New(newMemCache(), 0)
	ctx := context.Background()

	_ = s.Put(ctx, "fp", json.RawMessage(`"first"`))
	_ = s.Put(ctx, "fp", json.RawMessage(`"second"`))

	got, found, _ := s.Get(ctx, "fp")
	if !found || string(got) != `"second"` {
		t.Fatalf("expected overwritten payload, got found=%v %s", found, got)
	}
}

func TestCorruptEntryBehavesAsAbsent(t *testing.T) {
	mem := newMemCache()
	s := New(mem, 0)
	ctx := context.Background()

	_ = mem.Set(ctx, "fp", []byte("not-json"), 0)

	_, found, err := s.Get(ctx, "fp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("corrupt entry reported as hit")
	}
}
