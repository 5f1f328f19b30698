package http

import (
	"io"
	"net/http"
)

// HandleGitHubWebhook dispatches a verified GitHub delivery by event type.
// Verification happens in middleware; unknown event types are acknowledged
// and dropped so GitHub does not retry them.
func (h *Handlers) HandleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	switch event := r.Header.Get("X-GitHub-Event"); event {
	case "push":
		ev, err := h.hooks.HandleGitHubPush(r.Context(), body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed push payload")
			return
		}
		writeJSON(w, http.StatusOK, ev)
	case "pull_request":
		ev, err := h.hooks.HandleGitHubPullRequest(r.Context(), body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed pull_request payload")
			return
		}
		writeJSON(w, http.StatusOK, ev)
	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "event": event})
	}
}

// HandleGitLabWebhook dispatches a verified GitLab delivery by event type.
func (h *Handlers) HandleGitLabWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	switch event := r.Header.Get("X-Gitlab-Event"); event {
	case "Push Hook":
		ev, err := h.hooks.HandleGitLabPush(r.Context(), body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed push payload")
			return
		}
		writeJSON(w, http.StatusOK, ev)
	case "Pipeline Hook":
		ev, err := h.hooks.HandleGitLabPipeline(r.Context(), body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed pipeline payload")
			return
		}
		writeJSON(w, http.StatusOK, ev)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "event": event})
	}
}
