// Package http implements the REST adapter: thin handlers that translate
// HTTP requests into executor and service calls.
package http

import (
	"net/http"

	"github.com/gitbridge/gitbridge/internal/executor"
	"github.com/gitbridge/gitbridge/internal/service"
	"github.com/gitbridge/gitbridge/internal/token"
)

// Handlers bundles the HTTP handler dependencies.
type Handlers struct {
	exec    service.Runner
	bridge  *service.BridgeService
	hooks   *service.WebhookService
	tokens  map[string]*token.Manager
	version string
}

// NewHandlers creates the handler set.
func NewHandlers(exec service.Runner, bridge *service.BridgeService, hooks *service.WebhookService, tokens map[string]*token.Manager, version string) *Handlers {
	return &Handlers{
		exec:    exec,
		bridge:  bridge,
		hooks:   hooks,
		tokens:  tokens,
		version: version,
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

// RateLimits reports the last observed rate-limit snapshot per service.
func (h *Handlers) RateLimits(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]any, len(h.tokens))
	for id, tm := range h.tokens {
		snap := tm.Snapshot()
		if snap == nil {
			out[id] = nil
			continue
		}
		out[id] = map[string]any{
			"limit":     snap.Limit,
			"remaining": snap.Remaining,
			"reset_at":  snap.ResetAt,
			"headroom":  snap.Headroom(),
			"throttled": tm.ShouldThrottle(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// forwardQuery copies whitelisted pagination params from the inbound request.
func forwardQuery(r *http.Request) map[string]string {
	q := make(map[string]string)
	for _, name := range []string{"page", "per_page", "ref", "state", "status"} {
		if v := r.URL.Query().Get(name); v != "" {
			q[name] = v
		}
	}
	if len(q) == 0 {
		return nil
	}
	return q
}

// owner returns the credential owner for the request, taken from the
// X-Credential-Owner header when a caller wants per-user tokens.
func owner(r *http.Request) string {
	return r.Header.Get("X-Credential-Owner")
}

// ListGitHubRepos proxies GET user/repos.
func (h *Handlers) ListGitHubRepos(w http.ResponseWriter, r *http.Request) {
	payload, err := h.exec.Execute(r.Context(), executor.Request{
		Service:  "github",
		Endpoint: "user/repos",
		Query:    forwardQuery(r),
		Owner:    owner(r),
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

// CreateGitHubRepo proxies POST user/repos.
func (h *Handlers) CreateGitHubRepo(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[map[string]any](w, r)
	if !ok {
		return
	}
	name, _ := body["name"].(string)
	if !requireField(w, name, "name") {
		return
	}

	payload, err := h.exec.Execute(r.Context(), executor.Request{
		Service:  "github",
		Endpoint: "user/repos",
		Method:   http.MethodPost,
		Body:     body,
		Owner:    owner(r),
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusCreated, payload)
}

// ListGitHubWorkflows proxies GET repos/{owner}/{repo}/actions/workflows.
func (h *Handlers) ListGitHubWorkflows(w http.ResponseWriter, r *http.Request) {
	repoOwner, repo := urlParam(r, "owner"), urlParam(r, "repo")

	payload, err := h.exec.Execute(r.Context(), executor.Request{
		Service:  "github",
		Endpoint: "repos/" + repoOwner + "/" + repo + "/actions/workflows",
		Query:    forwardQuery(r),
		Owner:    owner(r),
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

// DispatchGitHubWorkflow triggers a workflow run.
func (h *Handlers) DispatchGitHubWorkflow(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Ref    string            `json:"ref"`
		Inputs map[string]string `json:"inputs"`
	}](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Ref, "ref") {
		return
	}

	payload, err := h.bridge.DispatchWorkflow(r.Context(),
		urlParam(r, "owner"), urlParam(r, "repo"), urlParam(r, "workflow"), req.Ref, req.Inputs)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusAccepted, payload)
}

// DispatchGitHubEvent sends a repository_dispatch event.
func (h *Handlers) DispatchGitHubEvent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		EventType     string `json:"event_type"`
		ClientPayload any    `json:"client_payload"`
	}](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.EventType, "event_type") {
		return
	}

	payload, err := h.bridge.DispatchEvent(r.Context(),
		urlParam(r, "owner"), urlParam(r, "repo"), req.EventType, req.ClientPayload)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusAccepted, payload)
}

// SyncCommitStatus mirrors a pipeline status onto a GitHub commit.
func (h *Handlers) SyncCommitStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Status    string `json:"status"`
		TargetURL string `json:"target_url"`
	}](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Status, "status") {
		return
	}

	payload, err := h.bridge.SyncCommitStatus(r.Context(),
		urlParam(r, "owner"), urlParam(r, "repo"), urlParam(r, "sha"), req.Status, req.TargetURL)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusCreated, payload)
}

// ListGitLabProjects proxies GET projects?membership=true.
func (h *Handlers) ListGitLabProjects(w http.ResponseWriter, r *http.Request) {
	q := forwardQuery(r)
	if q == nil {
		q = make(map[string]string)
	}
	q["membership"] = "true"

	payload, err := h.exec.Execute(r.Context(), executor.Request{
		Service:  "gitlab",
		Endpoint: "projects",
		Query:    q,
		Owner:    owner(r),
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

// ListGitLabPipelines proxies GET projects/{id}/pipelines.
func (h *Handlers) ListGitLabPipelines(w http.ResponseWriter, r *http.Request) {
	payload, err := h.exec.Execute(r.Context(), executor.Request{
		Service:  "gitlab",
		Endpoint: "projects/" + urlParam(r, "id") + "/pipelines",
		Query:    forwardQuery(r),
		Owner:    owner(r),
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

// TriggerGitLabPipeline starts a pipeline on the given ref.
func (h *Handlers) TriggerGitLabPipeline(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Ref string `json:"ref"`
	}](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Ref, "ref") {
		return
	}

	payload, err := h.bridge.TriggerPipeline(r.Context(), urlParam(r, "id"), req.Ref)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeRaw(w, http.StatusCreated, payload)
}
