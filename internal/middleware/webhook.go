package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gitbridge/gitbridge/internal/remote"
	"github.com/gitbridge/gitbridge/internal/webhook"
)

// maxWebhookBody caps how much of a delivery is buffered for signature
// verification. Matches the body limit the API handlers enforce.
const maxWebhookBody = 1 << 20 // 1MB

// WebhookVerify returns middleware that authenticates webhook deliveries for
// the given service using its signature scheme. The body is read for
// verification and restored for the handler.
func WebhookVerify(svc *remote.Service, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, `{"error":"webhook secret not configured"}`, http.StatusServiceUnavailable)
				return
			}

			sig := r.Header.Get(svc.SignatureHeader)
			if sig == "" {
				http.Error(w, "missing webhook signature", http.StatusUnauthorized)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
			body, err := io.ReadAll(r.Body)
			if err != nil {
				var tooBig *http.MaxBytesError
				if errors.As(err, &tooBig) {
					http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "failed to read body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !webhook.Verify(svc, body, sig, secret) {
				http.Error(w, "invalid webhook signature", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
