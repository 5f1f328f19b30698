// Package remote defines the closed set of remote forge services gitbridge talks to.
// Each supported service is one Service value; adding a service means adding one
// value here, not branching on a name string elsewhere.
package remote

// SignatureScheme identifies how a service signs its outbound webhooks.
type SignatureScheme int

const (
	// SignatureHMACSHA1 signs the raw payload with HMAC-SHA1 and delivers the
	// digest as "sha1=<hex>" (GitHub style).
	SignatureHMACSHA1 SignatureScheme = iota
	// SignatureSharedToken delivers the shared secret verbatim in a header
	// (GitLab style).
	SignatureSharedToken
)

// RateLimitHeaders names the response headers a service uses to report
// rate-limit state.
type RateLimitHeaders struct {
	Limit     string
	Remaining string
	Reset     string // unix epoch seconds
}

// Service describes one remote forge: where it lives, how requests are
// authenticated, and how its webhooks are verified.
type Service struct {
	ID               string
	BaseURL          string
	IdentityEndpoint string // minimal authenticated read used for token probes

	AuthHeaderName string
	authPrefix     string // prepended to the token in the auth header value

	// ExtraHeaders are attached to every request (media type, user agent).
	ExtraHeaders map[string]string

	// EnvVars lists environment variables checked for a token, primary first.
	EnvVars []string

	// IdempotencyHeader carries the request fingerprint on side-effecting calls.
	IdempotencyHeader string

	RateLimit RateLimitHeaders

	SignatureScheme SignatureScheme
	SignatureHeader string
}

// AuthHeader returns the header name and value that authenticate a request
// with the given token.
func (s *Service) AuthHeader(token string) (name, value string) {
	return s.AuthHeaderName, s.authPrefix + token
}

// GitHub is the descriptor for the GitHub REST API v3.
var GitHub = &Service{
	ID:               "github",
	BaseURL:          "https://api.github.com",
	IdentityEndpoint: "user",
	AuthHeaderName:   "Authorization",
	authPrefix:       "token ",
	ExtraHeaders: map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": "gitbridge",
	},
	EnvVars:           []string{"GITHUB_TOKEN", "GH_TOKEN"},
	IdempotencyHeader: "X-GitHub-Request-Id",
	RateLimit: RateLimitHeaders{
		Limit:     "X-RateLimit-Limit",
		Remaining: "X-RateLimit-Remaining",
		Reset:     "X-RateLimit-Reset",
	},
	SignatureScheme: SignatureHMACSHA1,
	SignatureHeader: "X-Hub-Signature",
}

// GitLab is the descriptor for the GitLab REST API v4.
var GitLab = &Service{
	ID:                "gitlab",
	BaseURL:           "https://gitlab.com/api/v4",
	IdentityEndpoint:  "user",
	AuthHeaderName:    "PRIVATE-TOKEN",
	EnvVars:           []string{"GITLAB_TOKEN", "GL_TOKEN"},
	IdempotencyHeader: "Idempotency-Key",
	RateLimit: RateLimitHeaders{
		Limit:     "RateLimit-Limit",
		Remaining: "RateLimit-Remaining",
		Reset:     "RateLimit-Reset",
	},
	SignatureScheme: SignatureSharedToken,
	SignatureHeader: "X-Gitlab-Token",
}
