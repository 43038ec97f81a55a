// Package security implements the webhook signature verification boundary.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks that signature is a valid HMAC-SHA256 digest of
// body under secret, in the "sha256=<hex>" format GitHub-style webhooks use.
//
// Any structural mismatch (missing prefix, wrong length, non-hex digest)
// returns false without comparing bytes, and the final comparison is
// constant-time, so verification time does not leak which byte of a
// mismatched signature was wrong.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	provided := signature[len(signaturePrefix):]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if len(provided) != len(expected) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(provided))
}
