package natskv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Open connects to NATS and ensures the KV bucket exists. The bucket TTL is a
// backstop; record freshness is enforced by the idempotency store itself.
// The returned close function drains the connection.
func Open(ctx context.Context, url, bucket string, ttl time.Duration) (*Cache, func(), error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream kv bucket: %w", err)
	}

	slog.Info("nats connected", "url", url, "bucket", bucket)
	return New(kv), func() { nc.Close() }, nil
}
