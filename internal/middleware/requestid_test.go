package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gitbridge/gitbridge/internal/logger"
)

func serveWithRequestID(t *testing.T, inbound string) (ctxID string, rec *httptest.ResponseRecorder) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
	if inbound != "" {
		req.Header.Set("X-Request-ID", inbound)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return ctxID, rec
}

func TestRequestIDGenerated(t *testing.T) {
	ctxID, rec := serveWithRequestID(t, "")

	if ctxID == "" {
		t.Error("no request ID in the handler context")
	}
	respID := rec.Header().Get("X-Request-ID")
	if respID != ctxID {
		t.Errorf("response header %q != context ID %q", respID, ctxID)
	}
	if len(respID) != 32 {
		t.Errorf("ID = %q, want 32 hex chars", respID)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	// A caller-supplied ID survives so deliveries can be correlated across
	// the forge, the bridge, and its logs.
	const inbound = "gh-delivery-72d3162e"

	ctxID, rec := serveWithRequestID(t, inbound)
	if ctxID != inbound {
		t.Errorf("context ID = %q, want %q", ctxID, inbound)
	}
	if got := rec.Header().Get("X-Request-ID"); got != inbound {
		t.Errorf("response header = %q, want %q", got, inbound)
	}
}

func TestRequestIDUniquePerRequest(t *testing.T) {
	a, _ := serveWithRequestID(t, "")
	b, _ := serveWithRequestID(t, "")
	if a == b {
		t.Fatalf("two requests got the same ID %q", a)
	}
}
