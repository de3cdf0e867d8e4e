package certverify

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"odinbots/internal/domain"
)

// sigDomainSep prefixes the root hash before signing, so a certified root
// can never be confused with any other signed artifact.
var sigDomainSep = []byte("odinbots-certified-root")

// Backend is the threshold-signature capability. Exactly one backend is
// registered at startup by the build that carries it.
type Backend interface {
	Name() string
	VerifyThreshold(authorityKey, msg, sig []byte) error
}

var (
	backendMu sync.Mutex
	backend   Backend
)

// RegisterBackend installs the threshold verification capability. Later
// registrations replace earlier ones; tests use this to simulate a build
// without the capability.
func RegisterBackend(b Backend) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backend = b
}

func registeredBackend() Backend {
	backendMu.Lock()
	defer backendMu.Unlock()
	return backend
}

// Certificate is the CBOR envelope carried alongside a certified response.
type Certificate struct {
	Tree      HashTree `cbor:"tree"`
	Signature []byte   `cbor:"signature"`
}

// Decode parses a certificate envelope.
func Decode(b []byte) (Certificate, error) {
	var c Certificate
	if err := cbor.Unmarshal(b, &c); err != nil {
		return Certificate{}, fmt.Errorf("decode certificate: %w", err)
	}
	return c, nil
}

// Encode serializes a certificate envelope. Used by local test authorities.
func Encode(c Certificate) ([]byte, error) {
	return cbor.Marshal(c)
}

// RootSignaturePayload is the byte string the threshold signature covers
// for a given tree root. Used by local test authorities to issue
// certificates the verifier accepts.
func RootSignaturePayload(root []byte) []byte {
	return append(append([]byte(nil), sigDomainSep...), root...)
}

// Options configures verification.
type Options struct {
	// Enabled turns the verifier on. Disabled (the default) means the
	// verifier is never invoked at all.
	Enabled bool
	// AuthorityKey is the authority's known public verification key.
	AuthorityKey []byte
	// CacheWindow bounds how long a verified root is trusted without
	// re-verification. Zero means 1 minute.
	CacheWindow time.Duration
	// Clock defaults to time.Now.
	Clock domain.Clock
}

// Verifier checks certified responses against the authority key. Purely
// read-side: no trust material is mutated at runtime.
type Verifier struct {
	backend Backend
	key     []byte
	window  time.Duration
	clock   domain.Clock

	mu       sync.Mutex
	verified map[string]time.Time
}

// New builds a verifier. With Enabled false it returns (nil, nil) and
// callers skip verification entirely. With Enabled true and no registered
// backend it fails fast with ErrMissingCapability, before any trading
// operation can run behind an unchecked response.
func New(opts Options) (*Verifier, error) {
	if !opts.Enabled {
		return nil, nil
	}
	b := registeredBackend()
	if b == nil {
		return nil, fmt.Errorf("%w: certificate verification requested but no threshold backend is registered in this build", domain.ErrMissingCapability)
	}
	if len(opts.AuthorityKey) == 0 {
		return nil, fmt.Errorf("%w: certificate verification requested but no authority verification key configured", domain.ErrMissingCapability)
	}
	window := opts.CacheWindow
	if window <= 0 {
		window = time.Minute
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Verifier{
		backend:  b,
		key:      append([]byte(nil), opts.AuthorityKey...),
		window:   window,
		clock:    clock,
		verified: make(map[string]time.Time),
	}, nil
}

// Verify checks the certificate's threshold signature over its tree root.
// Roots verified within the cache window are accepted without redoing the
// cryptographic work.
func (v *Verifier) Verify(cert Certificate) error {
	root := cert.Tree.RootHash()
	key := hex.EncodeToString(root)
	now := v.clock()

	v.mu.Lock()
	at, seen := v.verified[key]
	v.mu.Unlock()
	if seen && now.Sub(at) < v.window {
		return nil
	}

	msg := RootSignaturePayload(root)
	if err := v.backend.VerifyThreshold(v.key, msg, cert.Signature); err != nil {
		return fmt.Errorf("certificate root %s: %w", key[:16], err)
	}

	v.mu.Lock()
	v.verified[key] = now
	// Drop stale entries opportunistically; the set stays tiny.
	for k, t := range v.verified {
		if now.Sub(t) >= v.window {
			delete(v.verified, k)
		}
	}
	v.mu.Unlock()
	return nil
}

// VerifiedLookup verifies cert and then reads the leaf at path.
func (v *Verifier) VerifiedLookup(cert Certificate, path ...[]byte) ([]byte, error) {
	if err := v.Verify(cert); err != nil {
		return nil, err
	}
	data, ok := cert.Tree.Lookup(path...)
	if !ok {
		return nil, fmt.Errorf("certified path not present")
	}
	return data, nil
}
