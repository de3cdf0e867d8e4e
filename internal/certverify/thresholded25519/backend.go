// Package thresholded25519 provides the default threshold verification
// backend: the authority publishes a single aggregate Ed25519 verification
// key for its signing committee, so verifying the aggregate signature
// against that key is a plain Ed25519 verification.
package thresholded25519

import (
	"crypto/ed25519"
	"errors"

	"odinbots/internal/certverify"
)

// Backend implements certverify.Backend over aggregate Ed25519 keys.
type Backend struct{}

var _ certverify.Backend = Backend{}

// Name identifies the backend in capability errors and logs.
func (Backend) Name() string { return "threshold-ed25519" }

// VerifyThreshold verifies the aggregate signature.
func (Backend) VerifyThreshold(authorityKey, msg, sig []byte) error {
	if len(authorityKey) != ed25519.PublicKeySize {
		return errors.New("authority key is not a valid aggregate ed25519 key")
	}
	if !ed25519.Verify(ed25519.PublicKey(authorityKey), msg, sig) {
		return errors.New("threshold signature invalid")
	}
	return nil
}

// Register installs this backend as the process-wide capability.
func Register() {
	certverify.RegisterBackend(Backend{})
}
