// Package executor issues authenticated API calls against remote forge
// services with the full resilience contract: credential injection,
// cooperative throttling near the rate limit, classified retries with
// exponential backoff, and deduplication of side-effecting requests.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gitbridge/gitbridge/internal/credential"
	"github.com/gitbridge/gitbridge/internal/idempotency"
	"github.com/gitbridge/gitbridge/internal/remote"
	"github.com/gitbridge/gitbridge/internal/resilience"
	"github.com/gitbridge/gitbridge/internal/token"
)

const (
	defaultMaxAttempts       = 5
	defaultBackoffBase       = 1.5
	defaultThrottleFallback  = 10 * time.Second
	defaultRateLimitFallback = 60 * time.Second
	defaultBreakerFailures   = 5
	defaultBreakerTimeout    = 30 * time.Second
)

// TokenSource is the per-service credential collaborator, satisfied by
// *token.Manager.
type TokenSource interface {
	Service() *remote.Service
	Token(ctx context.Context, owner string) (credential.Credential, error)
	Invalidate(owner string)
	UpdateRateLimit(h http.Header)
	ShouldThrottle() bool
	Snapshot() *token.RateLimitSnapshot
}

// Request describes one logical API call.
type Request struct {
	// Service names the registered remote service ("github", "gitlab").
	Service string
	// Endpoint is the path under the service base URL, without a leading slash.
	Endpoint string
	// Method defaults to GET when empty.
	Method string
	// Body is JSON-encoded when non-nil.
	Body any
	// Query is appended to the URL.
	Query map[string]string
	// Owner scopes credential resolution; empty means unscoped.
	Owner string
	// MaxAttempts overrides the executor default when positive.
	MaxAttempts int
}

// Options configures an Executor. Zero values select the defaults.
type Options struct {
	// Client issues the requests, http.DefaultClient by default. Wrap it
	// with instrumentation (otelhttp) at wiring time, not here.
	Client *http.Client
	// MaxAttempts bounds retries per request (default 5).
	MaxAttempts int
	// BackoffBase is the exponential backoff base in seconds (default 1.5).
	BackoffBase float64
	// ThrottleFallback is the pre-flight wait when headroom is low and no
	// reset time is known (default 10s).
	ThrottleFallback time.Duration
	// RateLimitFallback is the wait on a 429 without Retry-After (default 60s).
	RateLimitFallback time.Duration
	// Now is the clock, time.Now by default.
	Now func() time.Time
	// Sleep waits for a duration or until the context ends. Injectable so
	// tests do not spend wall-clock time.
	Sleep func(ctx context.Context, d time.Duration) error
	// BreakerFailures is the consecutive transport-failure count that opens
	// a service's circuit (default 5).
	BreakerFailures int
	// BreakerTimeout is how long an open circuit rejects calls before a
	// half-open probe (default 30s).
	BreakerTimeout time.Duration
}

// Executor runs requests against the registered services. All retry,
// throttle, and deduplication policy lives here; callers see a single
// Execute method.
type Executor struct {
	tokens map[string]TokenSource
	idem   *idempotency.Store

	// breakers hold one circuit breaker per service, tripped by consecutive
	// transport failures so a dead remote is not hammered.
	breakers map[string]*resilience.Breaker

	client            *http.Client
	maxAttempts       int
	backoffBase       float64
	throttleFallback  time.Duration
	rateLimitFallback time.Duration
	now               func() time.Time
	sleep             func(ctx context.Context, d time.Duration) error

	// group collapses concurrent identical side-effecting requests so only
	// one of them reaches the network.
	group singleflight.Group
}

// New creates an Executor over the given token sources. idem may be nil, in
// which case side-effecting requests are not deduplicated.
func New(idem *idempotency.Store, opts Options, sources ...TokenSource) *Executor {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffBase <= 1 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.ThrottleFallback <= 0 {
		opts.ThrottleFallback = defaultThrottleFallback
	}
	if opts.RateLimitFallback <= 0 {
		opts.RateLimitFallback = defaultRateLimitFallback
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = defaultBreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = defaultBreakerTimeout
	}

	e := &Executor{
		tokens:            make(map[string]TokenSource, len(sources)),
		idem:              idem,
		breakers:          make(map[string]*resilience.Breaker, len(sources)),
		client:            opts.Client,
		maxAttempts:       opts.MaxAttempts,
		backoffBase:       opts.BackoffBase,
		throttleFallback:  opts.ThrottleFallback,
		rateLimitFallback: opts.RateLimitFallback,
		now:               opts.Now,
		sleep:             opts.Sleep,
	}
	for _, src := range sources {
		id := src.Service().ID
		e.tokens[id] = src
		e.breakers[id] = resilience.NewBreaker(opts.BreakerFailures, opts.BreakerTimeout)
	}
	return e
}

// Execute runs the request to completion and returns the decoded response
// payload. Side-effecting requests (anything but GET) are fingerprinted
// first: a fresh recorded response is returned without touching the network,
// and concurrent duplicates share a single execution.
func (e *Executor) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	src, ok := e.tokens[req.Service]
	if !ok {
		return nil, fmt.Errorf("executor: unknown service %q", req.Service)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	if method == http.MethodGet || e.idem == nil {
		return e.run(ctx, src, req, method, "")
	}

	fp, err := idempotency.Fingerprint(req.Service, req.Endpoint, method, req.Body, req.Query)
	if err != nil {
		return nil, fmt.Errorf("executor: fingerprint: %w", err)
	}

	v, err, _ := e.group.Do(fp, func() (any, error) {
		payload, found, err := e.idem.Get(ctx, fp)
		if err != nil {
			return nil, err
		}
		if found {
			slog.Debug("duplicate request served from idempotency store",
				"service", req.Service, "endpoint", req.Endpoint, "fingerprint", fp)
			return payload, nil
		}
		return e.run(ctx, src, req, method, fp)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// run is the attempt loop. fp is empty for requests that are not
// deduplicated.
func (e *Executor) run(ctx context.Context, src TokenSource, req Request, method, fp string) (json.RawMessage, error) {
	svc := src.Service()
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = e.maxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cred, err := src.Token(ctx, req.Owner)
		if err != nil {
			return nil, err
		}

		if src.ShouldThrottle() {
			wait := e.throttleWait(src)
			slog.Warn("rate limit headroom low, throttling",
				"service", svc.ID, "wait", wait)
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		// The breaker counts transport failures only; a response with any
		// status is the remote answering, not the remote being down.
		var resp *http.Response
		err = e.breakers[svc.ID].Execute(func() error {
			var derr error
			resp, derr = e.do(ctx, svc, cred.Token, req, method, fp)
			return derr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, deadlineErr(ctx)
			}
			lastErr = fmt.Errorf("%s: %w", svc.ID, err)
			slog.Warn("request failed, backing off",
				"service", svc.ID, "endpoint", req.Endpoint,
				"attempt", attempt+1, "error", err)
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		src.UpdateRateLimit(resp.Header)
		if readErr != nil {
			lastErr = fmt.Errorf("%s: read response: %w", svc.ID, readErr)
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			payload, err := decodePayload(body)
			if err != nil {
				lastErr = fmt.Errorf("%s: %w", svc.ID, err)
				if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			if fp != "" {
				if err := e.idem.Put(ctx, fp, payload); err != nil {
					slog.Warn("idempotency record failed",
						"service", svc.ID, "fingerprint", fp, "error", err)
				}
			}
			return payload, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := e.rateLimitWait(resp.Header, attempt)
			lastErr = fmt.Errorf("%s: rate limited (429)", svc.ID)
			slog.Warn("rate limited by remote service",
				"service", svc.ID, "endpoint", req.Endpoint,
				"attempt", attempt+1, "wait", wait)
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case resp.StatusCode == http.StatusUnauthorized:
			// The token the service just rejected must never be reused.
			src.Invalidate(req.Owner)
			return nil, &AuthError{Service: svc.ID, Status: resp.StatusCode}

		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
			return nil, &ClientError{Service: svc.ID, Status: resp.StatusCode, Body: body}

		default:
			lastErr = fmt.Errorf("%s: API status %d: %s", svc.ID, resp.StatusCode, truncate(body))
			slog.Warn("request failed, backing off",
				"service", svc.ID, "endpoint", req.Endpoint,
				"attempt", attempt+1, "status", resp.StatusCode)
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	return nil, &ExhaustedError{Service: svc.ID, Attempts: maxAttempts, LastErr: lastErr}
}

// do issues a single HTTP attempt.
func (e *Executor) do(ctx context.Context, svc *remote.Service, tok string, req Request, method, fp string) (*http.Response, error) {
	u := svc.BaseURL + "/" + strings.TrimPrefix(req.Endpoint, "/")
	if len(req.Query) > 0 {
		vals := url.Values{}
		for k, v := range req.Query {
			vals.Set(k, v)
		}
		u += "?" + vals.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}

	name, value := svc.AuthHeader(tok)
	httpReq.Header.Set(name, value)
	for k, v := range svc.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if fp != "" && svc.IdempotencyHeader != "" {
		httpReq.Header.Set(svc.IdempotencyHeader, fp)
	}

	return e.client.Do(httpReq)
}

// throttleWait picks the pre-flight wait when headroom is low: until the
// reported reset when one is known, the fallback otherwise, never less than
// a second.
func (e *Executor) throttleWait(src TokenSource) time.Duration {
	snap := src.Snapshot()
	if snap == nil || snap.ResetAt.IsZero() {
		return e.throttleFallback
	}
	until := snap.ResetAt.Sub(e.now())
	if until < time.Second {
		return time.Second
	}
	return until
}

// rateLimitWait picks the wait after a 429: the larger of the exponential
// backoff and the service's Retry-After (fallback when absent). GitHub emits
// Retry-After as both delta-seconds and HTTP-date; both forms are honored.
func (e *Executor) rateLimitWait(h http.Header, attempt int) time.Duration {
	ra := e.rateLimitFallback
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			ra = time.Duration(secs) * time.Second
		} else if at, err := http.ParseTime(s); err == nil {
			ra = max(at.Sub(e.now()), 0)
		}
	}
	if b := e.backoff(attempt); b > ra {
		return b
	}
	return ra
}

// backoff is base^attempt seconds.
func (e *Executor) backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(e.backoffBase, float64(attempt)) * float64(time.Second))
}

// decodePayload validates a 2xx body as JSON. An empty body normalizes to an
// empty object so success always yields a payload worth recording.
func decodePayload(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("malformed JSON response")
	}
	return json.RawMessage(trimmed), nil
}

// sleepContext waits for d or until the context ends, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return deadlineErr(ctx)
	case <-t.C:
		return nil
	}
}

// deadlineErr maps a finished context to the executor's error vocabulary:
// deadlines become ErrTimeout, cancellation passes through.
func deadlineErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
