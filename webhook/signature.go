package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Signature errors.
var (
	// ErrMissingSignature is returned when the delivery carries no
	// X-Hub-Signature-256 header while a secret is configured.
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrBadSignature is returned when the signature does not match
	// the payload.
	ErrBadSignature = errors.New("webhook signature mismatch")
)

// ValidateSignature checks a GitHub X-Hub-Signature-256 header
// ("sha256=<hex>") against the payload using the shared secret.
// Comparison is constant time.
func ValidateSignature(secret string, payload []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}
	hexDigest, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(hexDigest)
	if err != nil {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}
