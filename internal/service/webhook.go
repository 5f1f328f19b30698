package service

import (
	"context"
	"log/slog"

	"github.com/gitbridge/gitbridge/internal/adapter/ws"
	"github.com/gitbridge/gitbridge/internal/port/broadcast"
	"github.com/gitbridge/gitbridge/internal/webhook"
)

// WebhookService normalizes verified webhook deliveries and fans them out to
// connected clients. Verification happens in middleware before payloads
// reach this service.
type WebhookService struct {
	hub broadcast.Broadcaster
}

// NewWebhookService creates a WebhookService.
func NewWebhookService(hub broadcast.Broadcaster) *WebhookService {
	return &WebhookService{hub: hub}
}

// HandleGitHubPush processes a GitHub push delivery.
func (s *WebhookService) HandleGitHubPush(ctx context.Context, data []byte) (*webhook.PushEvent, error) {
	ev, err := webhook.ParseGitHubPush(data)
	if err != nil {
		return nil, err
	}

	slog.Info("github push event", "repo", ev.Repository, "branch", ev.Branch, "commits", len(ev.Commits))
	s.broadcast(ctx, ws.EventWebhookPush, ev)
	return ev, nil
}

// HandleGitLabPush processes a GitLab push delivery.
func (s *WebhookService) HandleGitLabPush(ctx context.Context, data []byte) (*webhook.PushEvent, error) {
	ev, err := webhook.ParseGitLabPush(data)
	if err != nil {
		return nil, err
	}

	slog.Info("gitlab push event", "repo", ev.Repository, "branch", ev.Branch, "commits", len(ev.Commits))
	s.broadcast(ctx, ws.EventWebhookPush, ev)
	return ev, nil
}

// HandleGitHubPullRequest processes a GitHub pull_request delivery.
func (s *WebhookService) HandleGitHubPullRequest(ctx context.Context, data []byte) (*webhook.PullRequestEvent, error) {
	ev, err := webhook.ParseGitHubPullRequest(data)
	if err != nil {
		return nil, err
	}

	slog.Info("github PR event", "repo", ev.Repository, "action", ev.Action, "pr", ev.Number)
	s.broadcast(ctx, ws.EventWebhookPullRequest, ev)
	return ev, nil
}

// HandleGitLabPipeline processes a GitLab pipeline status delivery.
func (s *WebhookService) HandleGitLabPipeline(ctx context.Context, data []byte) (*webhook.PipelineEvent, error) {
	ev, err := webhook.ParseGitLabPipeline(data)
	if err != nil {
		return nil, err
	}

	slog.Info("gitlab pipeline event", "repo", ev.Repository, "pipeline", ev.PipelineID, "status", ev.Status)
	s.broadcast(ctx, ws.EventWebhookPipeline, ev)
	return ev, nil
}

func (s *WebhookService) broadcast(ctx context.Context, eventType string, payload any) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, eventType, payload)
	}
}
