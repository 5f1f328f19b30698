package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gitbridge/gitbridge/internal/adapter/tiered"
)

// memCache is an in-memory cache standing in for a tier. setErr makes
// writes fail to observe ordering.
type memCache struct {
	data   map[string][]byte
	setErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestTieredLocalHitSkipsShared(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	c := tiered.New(local, shared, 5*time.Minute)

	local.data["rec"] = []byte("local")
	shared.data["rec"] = []byte("stale-shared")

	val, found, err := c.Get(context.Background(), "rec")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(val) != "local" {
		t.Fatalf("val = %q, want the local copy", val)
	}
}

func TestTieredSharedHitBackfillsLocal(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	c := tiered.New(local, shared, 5*time.Minute)

	// Another replica wrote the record; only the shared tier has it.
	shared.data["rec"] = []byte("remote")

	val, found, err := c.Get(context.Background(), "rec")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(val) != "remote" {
		t.Fatalf("val = %q", val)
	}
	if string(local.data["rec"]) != "remote" {
		t.Fatal("shared hit was not copied into the local tier")
	}
}

func TestTieredMiss(t *testing.T) {
	c := tiered.New(newMemCache(), newMemCache(), 5*time.Minute)

	_, found, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected a miss on both tiers")
	}
}

func TestTieredSetWritesBothTiers(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	c := tiered.New(local, shared, 5*time.Minute)

	if err := c.Set(context.Background(), "rec", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := local.data["rec"]; !ok {
		t.Fatal("record missing from local tier")
	}
	if _, ok := shared.data["rec"]; !ok {
		t.Fatal("record missing from shared tier")
	}
}

func TestTieredSetSharedFirst(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	shared.setErr = errors.New("nats: connection closed")
	c := tiered.New(local, shared, 5*time.Minute)

	if err := c.Set(context.Background(), "rec", []byte("v"), time.Minute); err == nil {
		t.Fatal("expected shared-tier error")
	}
	// The failed write must not leave a local-only record other replicas
	// cannot see.
	if _, ok := local.data["rec"]; ok {
		t.Fatal("record written locally despite shared-tier failure")
	}
}

func TestTieredDeleteRemovesBothTiers(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	c := tiered.New(local, shared, 5*time.Minute)

	local.data["rec"] = []byte("v")
	shared.data["rec"] = []byte("v")

	if err := c.Delete(context.Background(), "rec"); err != nil {
		t.Fatal(err)
	}
	if _, ok := local.data["rec"]; ok {
		t.Fatal("record still in local tier")
	}
	if _, ok := shared.data["rec"]; ok {
		t.Fatal("record still in shared tier")
	}
}
