// Package service holds the application services built on top of the request
// executor: pipeline triggering, event dispatch, commit-status syncing, and
// webhook fan-out.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gitbridge/gitbridge/internal/adapter/ws"
	"github.com/gitbridge/gitbridge/internal/executor"
	"github.com/gitbridge/gitbridge/internal/port/broadcast"
)

// Runner executes API requests against the remote services.
// Satisfied by *executor.Executor.
type Runner interface {
	Execute(ctx context.Context, req executor.Request) (json.RawMessage, error)
}

// BridgeService implements the cross-forge operations: it drives one service's
// API in response to activity on the other.
type BridgeService struct {
	exec Runner
	hub  broadcast.Broadcaster
}

// NewBridgeService creates a BridgeService. hub may be nil when no clients
// need event fan-out.
func NewBridgeService(exec Runner, hub broadcast.Broadcaster) *BridgeService {
	return &BridgeService{exec: exec, hub: hub}
}

// TriggerPipeline starts a GitLab pipeline for the given project and ref.
func (s *BridgeService) TriggerPipeline(ctx context.Context, projectID, ref string) (json.RawMessage, error) {
	if projectID == "" || ref == "" {
		return nil, fmt.Errorf("trigger pipeline: project and ref are required")
	}

	payload, err := s.exec.Execute(ctx, executor.Request{
		Service:  "gitlab",
		Endpoint: fmt.Sprintf("projects/%s/pipeline", projectID),
		Method:   "POST",
		Body:     map[string]string{"ref": ref},
	})
	if err != nil {
		return nil, err
	}

	slog.Info("pipeline triggered", "project", projectID, "ref", ref)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventPipelineTriggered, map[string]string{
			"provider": "gitlab",
			"project":  projectID,
			"ref":      ref,
		})
	}
	return payload, nil
}

// DispatchWorkflow triggers a GitHub Actions workflow on the given ref.
// The workflow dispatch endpoint returns 204, so the payload is empty.
func (s *BridgeService) DispatchWorkflow(ctx context.Context, owner, repo, workflow, ref string, inputs map[string]string) (json.RawMessage, error) {
	if owner == "" || repo == "" || workflow == "" || ref == "" {
		return nil, fmt.Errorf("dispatch workflow: owner, repo, workflow, and ref are required")
	}

	body := map[string]any{"ref": ref}
	if len(inputs) > 0 {
		body["inputs"] = inputs
	}

	payload, err := s.exec.Execute(ctx, executor.Request{
		Service:  "github",
		Endpoint: fmt.Sprintf("repos/%s/%s/actions/workflows/%s/dispatches", owner, repo, workflow),
		Method:   "POST",
		Body:     body,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("workflow dispatched", "repo", owner+"/"+repo, "workflow", workflow, "ref", ref)
	return payload, nil
}

// DispatchEvent sends a GitHub repository_dispatch event.
func (s *BridgeService) DispatchEvent(ctx context.Context, owner, repo, eventType string, clientPayload any) (json.RawMessage, error) {
	if owner == "" || repo == "" || eventType == "" {
		return nil, fmt.Errorf("dispatch event: owner, repo, and event type are required")
	}

	body := map[string]any{"event_type": eventType}
	if clientPayload != nil {
		body["client_payload"] = clientPayload
	}

	return s.exec.Execute(ctx, executor.Request{
		Service:  "github",
		Endpoint: fmt.Sprintf("repos/%s/%s/dispatches", owner, repo),
		Method:   "POST",
		Body:     body,
	})
}

// SyncCommitStatus mirrors a GitLab pipeline status onto the matching GitHub
// commit as a commit status.
func (s *BridgeService) SyncCommitStatus(ctx context.Context, owner, repo, sha, pipelineStatus, targetURL string) (json.RawMessage, error) {
	if owner == "" || repo == "" || sha == "" {
		return nil, fmt.Errorf("sync commit status: owner, repo, and sha are required")
	}

	state, ok := commitState(pipelineStatus)
	if !ok {
		return nil, fmt.Errorf("sync commit status: unmapped pipeline status %q", pipelineStatus)
	}

	body := map[string]string{
		"state":   state,
		"context": "gitbridge/pipeline",
	}
	if targetURL != "" {
		body["target_url"] = targetURL
	}

	payload, err := s.exec.Execute(ctx, executor.Request{
		Service:  "github",
		Endpoint: fmt.Sprintf("repos/%s/%s/statuses/%s", owner, repo, sha),
		Method:   "POST",
		Body:     body,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("commit status synced", "repo", owner+"/"+repo, "sha", sha, "state", state)
	return payload, nil
}

// commitState maps a GitLab pipeline status to a GitHub commit-status state.
func commitState(pipelineStatus string) (string, bool) {
	switch pipelineStatus {
	case "pending", "created", "running":
		return "pending", true
	case "success":
		return "success", true
	case "failed":
		return "failure", true
	case "canceled", "skipped":
		return "error", true
	default:
		return "", false
	}
}
