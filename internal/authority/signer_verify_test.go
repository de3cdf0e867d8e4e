package authority

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"odinbots/internal/certverify"
	"odinbots/internal/certverify/thresholded25519"
	"odinbots/internal/domain"
)

// certifiedKeyServer serves a bot key response with a certificate over the
// labeled path bot_key/<name>, signed by the given authority key.
func certifiedKeyServer(t *testing.T, authorityPriv ed25519.PrivateKey, name string, pub []byte, mutate func(*botKeyResponse)) *httptest.Server {
	t.Helper()
	tree := certverify.Labeled([]byte("bot_key"), certverify.Labeled([]byte(name), certverify.Leaf(pub)))
	cert := certverify.Certificate{
		Tree:      *tree,
		Signature: ed25519.Sign(authorityPriv, certverify.RootSignaturePayload(tree.RootHash())),
	}
	encoded, err := certverify.Encode(cert)
	require.NoError(t, err)

	resp := botKeyResponse{
		PublicKeyHex:   hex.EncodeToString(pub),
		Address:        "addr-1",
		CertificateHex: hex.EncodeToString(encoded),
	}
	if mutate != nil {
		mutate(&resp)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(resp)
	}))
}

func newKeyVerifier(t *testing.T) (*certverify.Verifier, ed25519.PrivateKey) {
	t.Helper()
	thresholded25519.Register()
	authorityPub, authorityPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	v, err := certverify.New(certverify.Options{Enabled: true, AuthorityKey: authorityPub})
	require.NoError(t, err)
	return v, authorityPriv
}

func TestBotKeyAcceptsCertifiedResponse(t *testing.T) {
	v, authorityPriv := newKeyVerifier(t)
	botPub := []byte("0123456789abcdef0123456789abcdef")
	srv := certifiedKeyServer(t, authorityPriv, "alpha", botPub, nil)
	defer srv.Close()

	s := NewSigner(srv.URL, srv.Client(), time.Second, "", nil).WithVerifier(v)
	pub, addr, err := s.BotKey(context.Background(), "alpha")
	require.NoError(t, err)
	require.Equal(t, botPub, pub)
	require.Equal(t, domain.Address("addr-1"), addr)
}

func TestBotKeyRejectsTamperedKey(t *testing.T) {
	v, authorityPriv := newKeyVerifier(t)
	botPub := []byte("0123456789abcdef0123456789abcdef")
	srv := certifiedKeyServer(t, authorityPriv, "alpha", botPub, func(resp *botKeyResponse) {
		// Swap the key after certification, as an on-path attacker would.
		forged := append([]byte(nil), botPub...)
		forged[0] ^= 0xff
		resp.PublicKeyHex = hex.EncodeToString(forged)
	})
	defer srv.Close()

	s := NewSigner(srv.URL, srv.Client(), time.Second, "", nil).WithVerifier(v)
	_, _, err := s.BotKey(context.Background(), "alpha")
	require.ErrorIs(t, err, domain.ErrAuthorityRejected)
}

func TestBotKeyRejectsForgedCertificate(t *testing.T) {
	v, _ := newKeyVerifier(t)
	// Certificate signed by a different key than the verifier trusts.
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	botPub := []byte("0123456789abcdef0123456789abcdef")
	srv := certifiedKeyServer(t, otherPriv, "alpha", botPub, nil)
	defer srv.Close()

	s := NewSigner(srv.URL, srv.Client(), time.Second, "", nil).WithVerifier(v)
	_, _, err = s.BotKey(context.Background(), "alpha")
	require.Error(t, err)
}

func TestBotKeyRequiresCertificateWhenVerifying(t *testing.T) {
	v, authorityPriv := newKeyVerifier(t)
	botPub := []byte("0123456789abcdef0123456789abcdef")
	srv := certifiedKeyServer(t, authorityPriv, "alpha", botPub, func(resp *botKeyResponse) {
		resp.CertificateHex = ""
	})
	defer srv.Close()

	s := NewSigner(srv.URL, srv.Client(), time.Second, "", nil).WithVerifier(v)
	_, _, err := s.BotKey(context.Background(), "alpha")
	require.ErrorIs(t, err, domain.ErrAuthorityRejected)

	// Without a verifier the same uncertified response is accepted.
	plain := NewSigner(srv.URL, srv.Client(), time.Second, "", nil)
	pub, _, err := plain.BotKey(context.Background(), "alpha")
	require.NoError(t, err)
	require.Equal(t, botPub, pub)
}
