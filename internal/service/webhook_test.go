package service

import (
	"context"
	"testing"
)

func TestHandleGitHubPushBroadcasts(t *testing.T) {
	hub := &fakeHub{}
	svc := NewWebhookService(hub)

	payload := []byte(`{
		"ref": "refs/heads/main",
		"after": "abc123",
		"repository": {"full_name": "octo/widget"},
		"sender": {"login": "octocat"}
	}`)

	ev, err := svc.HandleGitHubPush(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Repository != "octo/widget" || ev.Branch != "main" {
		t.Fatalf("event = %+v", ev)
	}
	if len(hub.events) != 1 || hub.events[0] != "webhook.push" {
		t.Fatalf("events = %v", hub.events)
	}
}

func TestHandleGitLabPipelineBroadcasts(t *testing.T) {
	hub := &fakeHub{}
	svc := NewWebhookService(hub)

	payload := []byte(`{
		"object_attributes": {"id": 7, "status": "failed", "ref": "main", "sha": "abc"},
		"project": {"path_with_namespace": "group/widget"}
	}`)

	ev, err := svc.HandleGitLabPipeline(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.PipelineID != 7 || ev.Status != "failed" {
		t.Fatalf("event = %+v", ev)
	}
	if len(hub.events) != 1 || hub.events[0] != "webhook.pipeline" {
		t.Fatalf("events = %v", hub.events)
	}
}

func TestHandleMalformedDeliveryNotBroadcast(t *testing.T) {
	hub := &fakeHub{}
	svc := NewWebhookService(hub)

	if _, err := svc.HandleGitHubPush(context.Background(), []byte("{")); err == nil {
		t.Fatal("expected error")
	}
	if len(hub.events) != 0 {
		t.Fatalf("events = %v", hub.events)
	}
}

func TestWebhookServiceNilHub(t *testing.T) {
	svc := NewWebhookService(nil)
	if _, err := svc.HandleGitLabPush(context.Background(), []byte(`{"ref":"refs/heads/main"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
