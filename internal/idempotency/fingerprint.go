// Package idempotency deduplicates side-effecting API calls: a request
// fingerprint maps to the response of a recent successful execution, and a
// fresh record suppresses the duplicate network call entirely.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Fingerprint returns a deterministic digest identifying a logical
// side-effecting request. Key order inside body and query does not affect the
// result: both are re-marshalled through a canonical form that sorts object
// keys at every level.
func Fingerprint(service, endpoint, method string, body any, query map[string]string) (string, error) {
	canonicalBody, err := canonicalize(body)
	if err != nil {
		return "", fmt.Errorf("canonicalize body: %w", err)
	}
	canonicalQuery, err := canonicalize(query)
	if err != nil {
		return "", fmt.Errorf("canonicalize query: %w", err)
	}

	key := strings.Join([]string{
		service,
		endpoint,
		strings.ToUpper(method),
		canonicalBody,
		canonicalQuery,
	}, "|")

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize renders v as JSON with object keys sorted at every nesting
// level. A round trip through an untyped value reduces structs and maps to
// the same representation, and encoding/json emits map keys in sorted order.
func canonicalize(v any) (string, error) {
	if v == nil {
		return "", nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var norm any
	if err := json.Unmarshal(raw, &norm); err != nil {
		return "", err
	}

	out, err := json.Marshal(norm)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
