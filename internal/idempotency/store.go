package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gitbridge/gitbridge/internal/port/cache"
)

// DefaultWindow is how long a recorded response suppresses duplicates.
const DefaultWindow = 5 * time.Minute

// record is the stored form of a deduplicated response. The timestamp lives
// inside the record so freshness is enforced here, not by cache eviction.
type record struct {
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Store maps request fingerprints to recently recorded responses.
type Store struct {
	cache  cache.Cache
	window time.Duration
	now    func() time.Time
}

// New creates a Store on top of the given cache. window <= 0 selects
// DefaultWindow.
func New(c cache.Cache, window time.Duration) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{cache: c, window: window, now: time.Now}
}

// Get returns the recorded response for the fingerprint while it is still
// inside the freshness window. A record at or past the window behaves as
// absent; the underlying cache entry is dropped best-effort.
func (s *Store) Get(ctx context.Context, fingerprint string) (json.RawMessage, bool, error) {
	data, found, err := s.cache.Get(ctx, fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency get: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupt entries are treated as absent; the next success overwrites.
		_ = s.cache.Delete(ctx, fingerprint)
		return nil, false, nil
	}

	if s.now().Sub(rec.RecordedAt) >= s.window {
		_ = s.cache.Delete(ctx, fingerprint)
		return nil, false, nil
	}

	return rec.Payload, true, nil
}

// Put records a successful response for the fingerprint, overwriting any
// prior entry.
func (s *Store) Put(ctx context.Context, fingerprint string, payload json.RawMessage) error {
	rec := record{Payload: payload, RecordedAt: s.now()}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("idempotency marshal: %w", err)
	}
	if err := s.cache.Set(ctx, fingerprint, data, s.window); err != nil {
		return fmt.Errorf("idempotency put: %w", err)
	}
	return nil
}

// Window returns the configured freshness window.
func (s *Store) Window() time.Duration { return s.window }
