package thresholded25519

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyThreshold(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	msg := []byte("certified root digest")
	sig := ed25519.Sign(priv, msg)

	b := Backend{}
	require.NoError(t, b.VerifyThreshold(pub, msg, sig))
	require.Error(t, b.VerifyThreshold(pub, []byte("other"), sig))
	require.Error(t, b.VerifyThreshold([]byte("short key"), msg, sig))
}
