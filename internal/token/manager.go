// Package token resolves, validates, and caches credentials for a remote
// forge service, and tracks the service's reported rate-limit headroom.
//
// A Manager performs no retries of its own; classifying and retrying failures
// is the executor's job.
package token

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gitbridge/gitbridge/internal/credential"
	"github.com/gitbridge/gitbridge/internal/port/credstore"
	"github.com/gitbridge/gitbridge/internal/remote"
)

const (
	defaultTTL       = 24 * time.Hour
	defaultThreshold = 0.10
)

// Options configures a Manager. The zero value is usable: tokens resolve from
// the environment only, with the default TTL and throttle threshold.
type Options struct {
	// Store is the user-credential collaborator. May be nil.
	Store credstore.Store
	// Env is the environment source, os.Getenv by default.
	Env func(string) string
	// Client issues validation probes, http.DefaultClient by default.
	Client *http.Client
	// TTL bounds how long a validated credential is reused (default 24h).
	TTL time.Duration
	// Threshold is the headroom fraction below which ShouldThrottle reports
	// true (default 0.10).
	Threshold float64
	// Now is the clock, time.Now by default.
	Now func() time.Time
}

// Manager owns the credential cache and rate-limit snapshot for one remote
// service. All cross-component access goes through its methods.
type Manager struct {
	svc       *remote.Service
	store     credstore.Store
	env       func(string) string
	client    *http.Client
	ttl       time.Duration
	threshold float64
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]credential.Credential // keyed by owner

	// group collapses concurrent resolutions for the same owner into a
	// single validation probe.
	group singleflight.Group

	rlMu     sync.RWMutex
	snapshot *RateLimitSnapshot
}

// NewManager creates a Manager for the given service.
func NewManager(svc *remote.Service, opts Options) *Manager {
	if opts.Env == nil {
		opts.Env = os.Getenv
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		svc:       svc,
		store:     opts.Store,
		env:       opts.Env,
		client:    opts.Client,
		ttl:       opts.TTL,
		threshold: opts.Threshold,
		now:       opts.Now,
		cache:     make(map[string]credential.Credential),
	}
}

// Service returns the remote service this manager resolves credentials for.
func (m *Manager) Service() *remote.Service { return m.svc }

// Token returns a currently valid credential for the given owner (empty for
// unscoped). A cached, unexpired credential is returned directly; otherwise
// one resolution runs per owner, concurrent callers share its result.
//
// Returns credential.ErrNotFound when no candidate exists anywhere, and
// credential.ErrInvalid when the remote service rejects the candidate.
func (m *Manager) Token(ctx context.Context, owner string) (credential.Credential, error) {
	key := cacheKey(owner)

	m.mu.Lock()
	if c, ok := m.cache[key]; ok && !c.Expired(m.now()) {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(key, func() (any, error) {
		// A caller that waited on an earlier flight may land here after the
		// cache was already populated.
		m.mu.Lock()
		if c, ok := m.cache[key]; ok && !c.Expired(m.now()) {
			m.mu.Unlock()
			return c, nil
		}
		m.mu.Unlock()
		return m.resolve(ctx, owner, key)
	})
	if err != nil {
		return credential.Credential{}, err
	}
	return v.(credential.Credential), nil
}

// resolve finds a candidate token, validates it against the remote service,
// and caches it with the configured TTL.
func (m *Manager) resolve(ctx context.Context, owner, key string) (credential.Credential, error) {
	tok, err := m.candidate(ctx, owner)
	if err != nil {
		return credential.Credential{}, err
	}
	if tok == "" {
		return credential.Credential{}, fmt.Errorf("%s (owner %q): %w", m.svc.ID, key, credential.ErrNotFound)
	}

	if !m.Validate(ctx, tok) {
		return credential.Credential{}, fmt.Errorf("%s (owner %q): %w", m.svc.ID, key, credential.ErrInvalid)
	}

	now := m.now()
	c := credential.Credential{
		Token:     tok,
		Service:   m.svc.ID,
		Owner:     key,
		CachedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.cache[key] = c
	m.mu.Unlock()

	slog.Debug("credential cached", "service", m.svc.ID, "owner", key, "expires_at", c.ExpiresAt)
	return c, nil
}

// candidate resolves a token string without validating it: environment
// variables first (primary, then fallbacks), then the credential store.
func (m *Manager) candidate(ctx context.Context, owner string) (string, error) {
	for _, name := range m.svc.EnvVars {
		if tok := m.env(name); tok != "" {
			return tok, nil
		}
	}

	if m.store == nil {
		return "", nil
	}

	if owner != "" {
		tok, ok, err := m.store.Lookup(ctx, m.svc.ID, owner)
		if err != nil {
			return "", fmt.Errorf("credential store: %w", err)
		}
		if ok {
			return tok, nil
		}
		return "", nil
	}

	tok, ok, err := m.store.First(ctx, m.svc.ID)
	if err != nil {
		return "", fmt.Errorf("credential store: %w", err)
	}
	if !ok {
		return "", nil
	}
	return tok, nil
}

// Validate probes the service's identity endpoint with the given token.
// The rate-limit snapshot is updated from the response whether or not the
// probe succeeds; only a 2xx response counts as valid.
func (m *Manager) Validate(ctx context.Context, tok string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		m.svc.BaseURL+"/"+m.svc.IdentityEndpoint, nil)
	if err != nil {
		return false
	}
	name, value := m.svc.AuthHeader(tok)
	req.Header.Set(name, value)
	for k, v := range m.svc.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		slog.Debug("token probe failed", "service", m.svc.ID, "error", err)
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	m.UpdateRateLimit(resp.Header)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// UpdateRateLimit refreshes the snapshot from response headers. Responses
// without both limit and remaining leave the snapshot unchanged, so a stale
// snapshot is preferred over a wrong one.
func (m *Manager) UpdateRateLimit(h http.Header) {
	limitStr := h.Get(m.svc.RateLimit.Limit)
	remainingStr := h.Get(m.svc.RateLimit.Remaining)
	if limitStr == "" || remainingStr == "" {
		return
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return
	}

	snap := &RateLimitSnapshot{Limit: limit, Remaining: remaining}
	if resetStr := h.Get(m.svc.RateLimit.Reset); resetStr != "" {
		if epoch, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			snap.ResetAt = time.Unix(epoch, 0)
		}
	}

	m.rlMu.Lock()
	m.snapshot = snap
	m.rlMu.Unlock()
}

// ShouldThrottle reports whether headroom has dropped below the threshold.
// With no snapshot observed yet there is nothing to act on.
func (m *Manager) ShouldThrottle() bool {
	m.rlMu.RLock()
	defer m.rlMu.RUnlock()
	return m.snapshot != nil && m.snapshot.Headroom() < m.threshold
}

// Snapshot returns a copy of the current rate-limit snapshot, or nil when
// none has been observed.
func (m *Manager) Snapshot() *RateLimitSnapshot {
	m.rlMu.RLock()
	defer m.rlMu.RUnlock()
	if m.snapshot == nil {
		return nil
	}
	snap := *m.snapshot
	return &snap
}

// Invalidate purges the cached credential for the given owner. The executor
// calls this on any unauthenticated response so a revoked token is never
// reused.
func (m *Manager) Invalidate(owner string) {
	key := cacheKey(owner)

	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()

	// Drop any in-flight resolution result too: it may have validated the
	// token an instant before the service revoked it.
	m.group.Forget(key)

	slog.Info("credential invalidated", "service", m.svc.ID, "owner", key)
}

func cacheKey(owner string) string {
	if owner == "" {
		return credential.DefaultOwner
	}
	return owner
}
