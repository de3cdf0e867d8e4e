package certverify

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"odinbots/internal/domain"
)

// ed25519Backend mirrors the production backend for tests in this package;
// importing it directly would be an import cycle.
type ed25519Backend struct{}

func (ed25519Backend) Name() string { return "test-ed25519" }
func (ed25519Backend) VerifyThreshold(authorityKey, msg, sig []byte) error {
	if !ed25519.Verify(ed25519.PublicKey(authorityKey), msg, sig) {
		return domain.ErrDelegationVerification
	}
	return nil
}

func leaf(data string) *HashTree {
	return &HashTree{Kind: nodeLeaf, Data: []byte(data)}
}

func labeled(label string, child *HashTree) *HashTree {
	return &HashTree{Kind: nodeLabeled, Label: []byte(label), Left: child}
}

func fork(l, r *HashTree) *HashTree {
	return &HashTree{Kind: nodeFork, Left: l, Right: r}
}

// signedCert builds a certificate over tree with a fresh authority key.
func signedCert(t *testing.T, tree *HashTree) (Certificate, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	msg := RootSignaturePayload(tree.RootHash())
	return Certificate{Tree: *tree, Signature: ed25519.Sign(priv, msg)}, pub
}

func newTestVerifier(t *testing.T, key ed25519.PublicKey, opts ...func(*Options)) *Verifier {
	t.Helper()
	RegisterBackend(ed25519Backend{})
	t.Cleanup(func() { RegisterBackend(nil) })

	o := Options{Enabled: true, AuthorityKey: key}
	for _, f := range opts {
		f(&o)
	}
	v, err := New(o)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

func TestNewDisabled(t *testing.T) {
	v, err := New(Options{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestNewMissingBackend(t *testing.T) {
	RegisterBackend(nil)
	_, err := New(Options{Enabled: true, AuthorityKey: []byte("key")})
	require.ErrorIs(t, err, domain.ErrMissingCapability)
}

func TestNewMissingKey(t *testing.T) {
	RegisterBackend(ed25519Backend{})
	t.Cleanup(func() { RegisterBackend(nil) })

	_, err := New(Options{Enabled: true})
	require.ErrorIs(t, err, domain.ErrMissingCapability)
}

func TestVerifyValidCertificate(t *testing.T) {
	tree := labeled("sessions", labeled("alpha", leaf("record")))
	cert, pub := signedCert(t, tree)
	v := newTestVerifier(t, pub)

	require.NoError(t, v.Verify(cert))
}

func TestVerifyTamperedLeaf(t *testing.T) {
	tree := labeled("sessions", labeled("alpha", leaf("record")))
	cert, pub := signedCert(t, tree)
	v := newTestVerifier(t, pub)

	cert.Tree.Left.Left.Data = []byte("forged")
	require.Error(t, v.Verify(cert))
}

func TestVerifyWrongAuthorityKey(t *testing.T) {
	tree := labeled("k", leaf("v"))
	cert, _ := signedCert(t, tree)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	v := newTestVerifier(t, otherPub)

	require.Error(t, v.Verify(cert))
}

func TestVerifyCachesWithinWindow(t *testing.T) {
	tree := labeled("k", leaf("v"))
	cert, pub := signedCert(t, tree)

	now := time.Now()
	v := newTestVerifier(t, pub, func(o *Options) {
		o.CacheWindow = time.Minute
		o.Clock = func() time.Time { return now }
	})

	require.NoError(t, v.Verify(cert))

	// Swap in a backend that always fails: a cached root skips it.
	RegisterBackend(nil)
	require.NoError(t, v.Verify(cert))

	// Past the window the signature is checked again, against the same
	// backend instance captured at construction.
	now = now.Add(2 * time.Minute)
	require.NoError(t, v.Verify(cert))
}

func TestVerifiedLookup(t *testing.T) {
	tree := fork(
		labeled("sessions", labeled("alpha", leaf("rec-a"))),
		labeled("meta", leaf("m")),
	)
	cert, pub := signedCert(t, tree)
	v := newTestVerifier(t, pub)

	data, err := v.VerifiedLookup(cert, []byte("sessions"), []byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("rec-a"), data)

	_, err = v.VerifiedLookup(cert, []byte("sessions"), []byte("ghost"))
	require.Error(t, err)
}

func TestTreeCBORRoundTrip(t *testing.T) {
	tree := fork(
		labeled("sessions", labeled("alpha", leaf("rec-a"))),
		&HashTree{Kind: nodePruned, Data: labeled("meta", leaf("m")).RootHash()},
	)

	b, err := tree.MarshalCBOR()
	require.NoError(t, err)

	var decoded HashTree
	require.NoError(t, decoded.UnmarshalCBOR(b))
	require.Equal(t, tree.RootHash(), decoded.RootHash())

	data, ok := decoded.Lookup([]byte("sessions"), []byte("alpha"))
	require.True(t, ok)
	require.Equal(t, []byte("rec-a"), data)
}

func TestPrunedSubtreePreservesRoot(t *testing.T) {
	full := fork(
		labeled("a", leaf("1")),
		labeled("b", leaf("2")),
	)
	pruned := fork(
		labeled("a", leaf("1")),
		&HashTree{Kind: nodePruned, Data: labeled("b", leaf("2")).RootHash()},
	)

	require.Equal(t, full.RootHash(), pruned.RootHash())

	// The pruned branch is unreadable even though the root still verifies.
	_, ok := pruned.Lookup([]byte("b"))
	require.False(t, ok)
}

func TestCertificateEnvelopeRoundTrip(t *testing.T) {
	tree := labeled("k", leaf("v"))
	cert, _ := signedCert(t, tree)

	b, err := Encode(cert)
	require.NoError(t, err)
	decoded, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, cert.Tree.RootHash(), decoded.Tree.RootHash())
	require.Equal(t, cert.Signature, decoded.Signature)
}
