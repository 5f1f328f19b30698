package otel

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "gitbridge"

// Metrics holds the gitbridge metric instruments.
type Metrics struct {
	Requests          metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	WebhookDeliveries metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Requests, err = meter.Int64Counter("gitbridge.http.requests",
		metric.WithDescription("Number of HTTP requests served"))
	if err != nil {
		return nil, err
	}

	m.RequestDuration, err = meter.Float64Histogram("gitbridge.http.duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.WebhookDeliveries, err = meter.Int64Counter("gitbridge.webhooks.deliveries",
		metric.WithDescription("Number of verified webhook deliveries processed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Middleware records request count and duration for every served request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.Int("status", sw.status),
		)
		m.Requests.Add(r.Context(), 1, attrs)
		m.RequestDuration.Record(r.Context(), time.Since(start).Seconds(), attrs)

		if strings.Contains(r.URL.Path, "/webhooks/") && sw.status < http.StatusMultipleChoices {
			m.WebhookDeliveries.Add(r.Context(), 1,
				metric.WithAttributes(attribute.String("path", r.URL.Path)))
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker, required for WebSocket upgrades.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := sw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("upstream ResponseWriter does not implement http.Hijacker")
}
