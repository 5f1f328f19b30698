// Package credstore defines the port for reading user-provisioned tokens.
// The token manager only reads from this store; writes happen through the
// HTTP credential-registration surface.
package credstore

import "context"

// Store looks up stored tokens by service and owner.
type Store interface {
	// Lookup returns the token stored for (service, owner).
	// ok is false when no such credential exists; err reports store failures only.
	Lookup(ctx context.Context, service, owner string) (token string, ok bool, err error)

	// First returns the first stored token for the service regardless of
	// owner, used when a caller has no owner scope.
	First(ctx context.Context, service string) (token string, ok bool, err error)
}
