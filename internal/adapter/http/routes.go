package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/gitbridge/gitbridge/internal/config"
	"github.com/gitbridge/gitbridge/internal/middleware"
	"github.com/gitbridge/gitbridge/internal/remote"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, reg *remote.Registry, webhookCfg config.Webhook) {
	// Webhooks live outside the API group: they authenticate with the
	// service's own signature scheme, not with API credentials.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if github, err := reg.Lookup("github"); err == nil {
			r.With(middleware.WebhookVerify(github, webhookCfg.GitHubSecret)).
				Post("/github", h.HandleGitHubWebhook)
		}
		if gitlab, err := reg.Lookup("gitlab"); err == nil {
			r.With(middleware.WebhookVerify(gitlab, webhookCfg.GitLabToken)).
				Post("/gitlab", h.HandleGitLabWebhook)
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/limits", h.RateLimits)

		// GitHub
		r.Get("/github/repos", h.ListGitHubRepos)
		r.Post("/github/repos", h.CreateGitHubRepo)
		r.Get("/github/repos/{owner}/{repo}/workflows", h.ListGitHubWorkflows)
		r.Post("/github/repos/{owner}/{repo}/workflows/{workflow}/dispatches", h.DispatchGitHubWorkflow)
		r.Post("/github/repos/{owner}/{repo}/dispatches", h.DispatchGitHubEvent)
		r.Post("/github/repos/{owner}/{repo}/statuses/{sha}", h.SyncCommitStatus)

		// GitLab
		r.Get("/gitlab/projects", h.ListGitLabProjects)
		r.Get("/gitlab/projects/{id}/pipelines", h.ListGitLabPipelines)
		r.Post("/gitlab/projects/{id}/pipeline", h.TriggerGitLabPipeline)
	})
}
