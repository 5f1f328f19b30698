// Package webhook verifies and parses inbound webhook deliveries from the
// remote forge services.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gitbridge/gitbridge/internal/remote"
)

// Verify reports whether a delivery is authentic under the service's
// signature scheme. Missing or empty inputs verify as false; a bad signature
// is never an error, just a rejection.
func Verify(svc *remote.Service, payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	switch svc.SignatureScheme {
	case remote.SignatureHMACSHA1:
		return verifyHMACSHA1(payload, signature, secret)
	case remote.SignatureSharedToken:
		return subtle.ConstantTimeCompare([]byte(signature), []byte(secret)) == 1
	default:
		return false
	}
}

// verifyHMACSHA1 checks a "sha1=<hex>" signature over the raw payload.
func verifyHMACSHA1(payload []byte, signature, secret string) bool {
	const prefix = "sha1="
	if !strings.HasPrefix(signature, prefix) {
		return false
	}
	sigBytes, err := hex.DecodeString(signature[len(prefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(sigBytes, mac.Sum(nil))
}
