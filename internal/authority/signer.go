package authority

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"odinbots/internal/certverify"
	"odinbots/internal/domain"
)

// SignerClient talks to the remote signing authority. Bot keys are derived
// remotely off (root public key, bot name); this client never sees private
// material.
type SignerClient struct {
	c        *Client
	prefix   string
	verifier *certverify.Verifier
}

// NewSigner builds a signing authority client for base. service selects the
// signing deployment the gateway routes to (one per network; empty targets
// the gateway default, for local test servers). creds proves operator
// control of the root identity on every call; nil leaves requests
// unauthenticated.
func NewSigner(base string, httpc *http.Client, timeout time.Duration, service string, creds RequestSigner) *SignerClient {
	c := NewClient(base, httpc, timeout)
	if creds != nil {
		c.WithRequestSigner(creds)
	}
	prefix := "/v1/signer"
	if service != "" {
		prefix = "/v1/signer/" + service
	}
	return &SignerClient{c: c, prefix: prefix}
}

var _ domain.SigningAuthority = (*SignerClient)(nil)

// WithVerifier makes BotKey demand a certified response: the returned key
// must appear in a hash tree whose root carries a valid threshold
// signature. Without it, responses are trusted on transport security alone.
func (s *SignerClient) WithVerifier(v *certverify.Verifier) *SignerClient {
	s.verifier = v
	return s
}

type botKeyRequest struct {
	BotName string             `json:"bot_name"`
	Payment *domain.FeePayment `json:"payment,omitempty"`
}

type botKeyResponse struct {
	PublicKeyHex   string `json:"public_key_hex"`
	Address        string `json:"address"`
	CertificateHex string `json:"certificate_hex,omitempty"`
}

// BotKey fetches the bot's public key and address. The free query endpoint
// is tried first; a miss there falls back to the update endpoint, which
// populates the authority's key cache and may carry a fee.
func (s *SignerClient) BotKey(ctx context.Context, name domain.BotName) ([]byte, domain.Address, error) {
	var out botKeyResponse
	err := s.c.postJSON(ctx, s.prefix+"/public-key-query", "", botKeyRequest{BotName: string(name)}, &out)
	if errors.Is(err, domain.ErrAuthorityRejected) {
		// Cache miss on the query path; the update call derives the key.
		err = s.c.postJSON(ctx, s.prefix+"/public-key", "", botKeyRequest{BotName: string(name)}, &out)
	}
	if err != nil {
		return nil, "", err
	}
	pub, derr := hex.DecodeString(out.PublicKeyHex)
	if derr != nil || len(pub) == 0 {
		return nil, "", fmt.Errorf("%w: malformed public key %q", domain.ErrAuthorityRejected, out.PublicKeyHex)
	}
	if err := s.verifyBotKey(name, pub, out.CertificateHex); err != nil {
		return nil, "", err
	}
	return pub, domain.Address(out.Address), nil
}

// verifyBotKey checks the certified form of a bot key response. When a
// verifier is configured an uncertified or mismatching response is a hard
// failure; skipping the check silently would bypass an explicitly
// requested control.
func (s *SignerClient) verifyBotKey(name domain.BotName, pub []byte, certHex string) error {
	if s.verifier == nil {
		return nil
	}
	if certHex == "" {
		return fmt.Errorf("%w: bot key response carries no certificate", domain.ErrAuthorityRejected)
	}
	raw, err := hex.DecodeString(certHex)
	if err != nil {
		return fmt.Errorf("%w: malformed certificate", domain.ErrAuthorityRejected)
	}
	cert, err := certverify.Decode(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthorityRejected, err)
	}
	certified, err := s.verifier.VerifiedLookup(cert, []byte("bot_key"), []byte(name))
	if err != nil {
		return fmt.Errorf("bot key certificate for %s: %w", name, err)
	}
	if !bytes.Equal(certified, pub) {
		return fmt.Errorf("%w: certified bot key does not match response", domain.ErrAuthorityRejected)
	}
	return nil
}

type feeTokensResponse struct {
	FeeTokens []domain.FeeToken `json:"fee_tokens"`
}

// FeeTokens lists tokens the authority accepts as signing fees. Empty
// means signing is free.
func (s *SignerClient) FeeTokens(ctx context.Context) ([]domain.FeeToken, error) {
	var out feeTokensResponse
	if err := s.c.getJSON(ctx, s.prefix+"/fee-tokens", "", &out); err != nil {
		return nil, err
	}
	return out.FeeTokens, nil
}

type signRequest struct {
	BotName        string             `json:"bot_name"`
	MessageHashHex string             `json:"message_hash_hex"`
	Payment        *domain.FeePayment `json:"payment,omitempty"`
}

type signResponse struct {
	SignatureHex string `json:"signature_hex"`
}

// Sign signs messageHash with the bot's remotely-held key. payment is
// passed through uninspected.
func (s *SignerClient) Sign(ctx context.Context, name domain.BotName, messageHash []byte, payment *domain.FeePayment) ([]byte, error) {
	req := signRequest{
		BotName:        string(name),
		MessageHashHex: hex.EncodeToString(messageHash),
		Payment:        payment,
	}
	var out signResponse
	if err := s.c.postJSON(ctx, s.prefix+"/sign", "", req, &out); err != nil {
		return nil, err
	}
	sig, err := hex.DecodeString(out.SignatureHex)
	if err != nil || len(sig) == 0 {
		return nil, fmt.Errorf("%w: malformed signature %q", domain.ErrAuthorityRejected, out.SignatureHex)
	}
	return sig, nil
}
