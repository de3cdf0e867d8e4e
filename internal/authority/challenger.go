package authority

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"odinbots/internal/domain"
)

// ChallengerClient talks to the challenge authority: it prepares login
// challenges, validates signed proofs, and hands out delegations.
type ChallengerClient struct {
	c *Client
}

// NewChallenger builds a challenge authority client for base.
func NewChallenger(base string, httpc *http.Client, timeout time.Duration) *ChallengerClient {
	return &ChallengerClient{c: NewClient(base, httpc, timeout)}
}

var _ domain.ChallengeAuthority = (*ChallengerClient)(nil)

type prepareLoginRequest struct {
	Address string `json:"address"`
}

type prepareLoginResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PrepareLogin requests a fresh single-use challenge bound to addr.
func (cc *ChallengerClient) PrepareLogin(ctx context.Context, addr domain.Address) (domain.LoginChallenge, error) {
	var out prepareLoginResponse
	if err := cc.c.postJSON(ctx, "/v1/siwb/prepare-login", "", prepareLoginRequest{Address: string(addr)}, &out); err != nil {
		return domain.LoginChallenge{}, err
	}
	if out.Message == "" {
		return domain.LoginChallenge{}, fmt.Errorf("%w: empty challenge message", domain.ErrAuthorityRejected)
	}
	return domain.LoginChallenge{
		Address:   addr,
		Message:   out.Message,
		ExpiresAt: out.ExpiresAt,
	}, nil
}

type loginRequest struct {
	Address             string `json:"address"`
	PublicKeyHex        string `json:"public_key_hex"`
	Challenge           string `json:"challenge"`
	SignatureHex        string `json:"signature_hex"`
	SessionPublicKeyHex string `json:"session_public_key_hex"`
}

type loginResponse struct {
	Expiration       int64  `json:"expiration"`
	UserPublicKeyHex string `json:"user_public_key_hex"`
}

// Login submits a signed proof and receives the grant the delegation will
// be issued against. Expired challenges come back as ErrExpiredChallenge.
func (cc *ChallengerClient) Login(ctx context.Context, proof domain.LoginProof) (domain.LoginGrant, error) {
	req := loginRequest{
		Address:             string(proof.Address),
		PublicKeyHex:        hex.EncodeToString(proof.PublicKey),
		Challenge:           proof.Challenge,
		SignatureHex:        hex.EncodeToString(proof.Signature),
		SessionPublicKeyHex: hex.EncodeToString(proof.SessionPublicKey),
	}
	var out loginResponse
	if err := cc.c.postJSON(ctx, "/v1/siwb/login", "", req, &out); err != nil {
		return domain.LoginGrant{}, err
	}
	userPub, err := hex.DecodeString(out.UserPublicKeyHex)
	if err != nil || len(userPub) == 0 {
		return domain.LoginGrant{}, fmt.Errorf("%w: malformed user public key", domain.ErrAuthorityRejected)
	}
	return domain.LoginGrant{Expiration: out.Expiration, UserPublicKey: userPub}, nil
}

type delegationRequest struct {
	Address             string `json:"address"`
	SessionPublicKeyHex string `json:"session_public_key_hex"`
	Expiration          int64  `json:"expiration"`
}

type delegationResponse struct {
	PubkeyHex    string `json:"pubkey_hex"`
	Expiration   int64  `json:"expiration"`
	SignatureHex string `json:"signature_hex"`
}

// Delegation fetches the signed delegation issued by Login. The authority
// commits the signature asynchronously, so the engine polls this.
func (cc *ChallengerClient) Delegation(ctx context.Context, addr domain.Address, sessionPub []byte, expiration int64) (domain.SignedDelegation, error) {
	req := delegationRequest{
		Address:             string(addr),
		SessionPublicKeyHex: hex.EncodeToString(sessionPub),
		Expiration:          expiration,
	}
	var out delegationResponse
	if err := cc.c.postJSON(ctx, "/v1/siwb/delegation", "", req, &out); err != nil {
		return domain.SignedDelegation{}, err
	}
	pubkey, err1 := hex.DecodeString(out.PubkeyHex)
	sig, err2 := hex.DecodeString(out.SignatureHex)
	if err1 != nil || err2 != nil || len(pubkey) == 0 || len(sig) == 0 {
		return domain.SignedDelegation{}, fmt.Errorf("%w: malformed delegation", domain.ErrAuthorityRejected)
	}
	return domain.SignedDelegation{
		Delegation: domain.DelegationLink{Pubkey: pubkey, Expiration: out.Expiration},
		Signature:  sig,
	}, nil
}
