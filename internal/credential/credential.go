// Package credential defines the stored credential types shared by the token
// manager and the credential store.
package credential

import (
	"errors"
	"time"
)

// DefaultOwner is the owner tag for credentials not scoped to a user.
const DefaultOwner = "default"

// ErrNotFound means no candidate token exists in the environment or the
// credential store. Waiting will not produce one; the user must configure a
// token.
var ErrNotFound = errors.New("credential not found")

// ErrInvalid means a candidate token exists but the remote service rejected
// it during validation.
var ErrInvalid = errors.New("credential rejected by remote service")

// Credential is a validated bearer token for one remote service, cached with
// an expiry.
type Credential struct {
	Token     string
	Service   string
	Owner     string
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the credential must be re-resolved. A credential is
// never returned at or past its expiry.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
