package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// captureHandler collects handled records for assertions. An optional delay
// simulates a slow sink.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
	delay   time.Duration
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func record(msg string) slog.Record {
	return slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0)
}

func TestAsyncHandlerDelivers(t *testing.T) {
	sink := &captureHandler{}
	h := NewAsyncHandler(sink, 64, 1)

	if err := h.Handle(context.Background(), record("hello")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	h.Close()

	if got := sink.count(); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
}

func TestAsyncHandlerConcurrentProducers(t *testing.T) {
	const producers, perProducer = 50, 200

	sink := &captureHandler{}
	h := NewAsyncHandler(sink, producers*perProducer, 4)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				_ = h.Handle(context.Background(), record("burst"))
			}
		}()
	}
	wg.Wait()
	h.Close()

	if got := sink.count(); got != producers*perProducer {
		t.Fatalf("delivered = %d, want %d", got, producers*perProducer)
	}
}

func TestAsyncHandlerDropsWhenQueueFull(t *testing.T) {
	// A slow sink behind a one-slot queue forces drops instead of blocking
	// the producer.
	sink := &captureHandler{delay: 10 * time.Millisecond}
	h := NewAsyncHandler(sink, 1, 1)

	for i := 0; i < 50; i++ {
		_ = h.Handle(context.Background(), record("flood"))
	}
	h.Close()

	if h.DroppedCount() == 0 {
		t.Fatal("expected drops with a full queue")
	}
	if h.DroppedCount() >= 50 {
		t.Fatalf("dropped = %d, expected some deliveries", h.DroppedCount())
	}
}

func TestAsyncHandlerCloseDrainsQueue(t *testing.T) {
	sink := &captureHandler{}
	h := NewAsyncHandler(sink, 500, 2)

	const queued = 300
	for i := 0; i < queued; i++ {
		_ = h.Handle(context.Background(), record("pending"))
	}
	h.Close()

	if got := sink.count(); got != queued {
		t.Fatalf("delivered after close = %d, want %d", got, queued)
	}
}
