package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages. Webhook events carry the
// normalized payloads from internal/webhook; pipeline events are also emitted
// when a pipeline is triggered through the API.
const (
	EventWebhookPush        = "webhook.push"
	EventWebhookPullRequest = "webhook.pull_request"
	EventWebhookPipeline    = "webhook.pipeline"
	EventPipelineTriggered  = "pipeline.triggered"
)

// BroadcastEvent marshals a typed event and broadcasts it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
