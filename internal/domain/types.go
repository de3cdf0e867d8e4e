package domain

import (
	"time"
)

// BotName is the operator-chosen name of one trading bot.
type BotName string

// Address is the display-encoded (base58-check) form of a bot public key.
type Address string

// Principal is the textual identity the trading platform knows a bot by.
type Principal string

// BotIdentity is the derived identity for one bot. It is a pure projection
// of (root public key, bot name); the signing authority is the source of
// truth for PublicKey.
type BotIdentity struct {
	Name      BotName `json:"name"`
	PublicKey []byte  `json:"public_key"`
	Address   Address `json:"address"`
}

// LoginChallenge is a single-use, time-boxed message issued by the challenge
// authority and bound to one address.
type LoginChallenge struct {
	Address   Address   `json:"address"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DelegationLink asserts that Pubkey may act until Expiration (unix
// nanoseconds, fixed at issuance).
type DelegationLink struct {
	Pubkey     []byte `json:"pubkey"`
	Expiration int64  `json:"expiration"`
}

// SignedDelegation is one link of a delegation chain together with the
// issuer's signature over it.
type SignedDelegation struct {
	Delegation DelegationLink `json:"delegation"`
	Signature  []byte         `json:"signature"`
}

// DelegationChain transfers acting-authority from the authority-held root
// key (PublicKey) down to a short-lived session key. The first link is
// signed by PublicKey, each later link by the pubkey of the link before it.
type DelegationChain struct {
	PublicKey   []byte             `json:"public_key"`
	Delegations []SignedDelegation `json:"delegations"`
}

// SessionPublicKey returns the pubkey of the final link, the key the chain
// ultimately delegates to. Nil for an empty chain.
func (c DelegationChain) SessionPublicKey() []byte {
	if len(c.Delegations) == 0 {
		return nil
	}
	return c.Delegations[len(c.Delegations)-1].Delegation.Pubkey
}

// FeeToken describes one token the signing authority accepts as payment.
type FeeToken struct {
	TokenName   string `json:"token_name"`
	TokenLedger string `json:"token_ledger"`
	Fee         uint64 `json:"fee"`
}

// FeePayment is the payment reference passed through to the signing
// authority. The engine never inspects it beyond routing.
type FeePayment struct {
	TokenName   string `json:"token_name"`
	TokenLedger string `json:"token_ledger"`
	Amount      uint64 `json:"amount"`
}

// LoginProof is the signed challenge submitted to the challenge authority.
type LoginProof struct {
	Address          Address `json:"address"`
	PublicKey        []byte  `json:"public_key"`
	Challenge        string  `json:"challenge"`
	Signature        []byte  `json:"signature"`
	SessionPublicKey []byte  `json:"session_public_key"`
}

// LoginGrant is the challenge authority's answer to a valid proof. The
// delegation itself is fetched separately against Expiration.
type LoginGrant struct {
	Expiration    int64  `json:"expiration"`
	UserPublicKey []byte `json:"user_public_key"`
}

// TokenRequest exchanges a verified delegation for a bearer token. The
// signature covers TimestampMillis and is produced by the session key.
type TokenRequest struct {
	TimestampMillis string          `json:"timestamp"`
	Signature       []byte          `json:"signature"`
	Delegation      DelegationChain `json:"delegation"`
}

// SessionRecordVersion guards the persisted record layout. A record with a
// different version is treated as corrupt and re-authenticated.
const SessionRecordVersion = 1

// SessionRecord is the cached artifact for one bot: everything a caller
// needs to act as the bot until expiry.
type SessionRecord struct {
	Version     int             `json:"version"`
	BotName     BotName         `json:"bot_name"`
	Address     Address         `json:"address"`
	Principal   Principal       `json:"principal"`
	BearerToken string          `json:"bearer_token"`
	SessionSeed []byte          `json:"session_seed"`
	Delegation  DelegationChain `json:"delegation"`
	IssuedAt    time.Time       `json:"issued_at"`
	// Lifetime is the authoritative validity window. ExpiresAt is stored for
	// self-description but expiry is always judged as IssuedAt+Lifetime so a
	// skewed wall clock cannot stretch a session.
	Lifetime  time.Duration `json:"lifetime_ns"`
	ExpiresAt time.Time     `json:"expires_at"`
	// DepositAddress is the bot's deterministic funding address, cached so
	// repeat funding calls need no extra round trip.
	DepositAddress string `json:"deposit_address,omitempty"`
}

// Expired reports whether the record is past its validity window at now.
func (r SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.IssuedAt.Add(r.Lifetime))
}

// Complete reports whether the record carries everything a caller needs.
// Incomplete records are treated as corrupt.
func (r SessionRecord) Complete() bool {
	return r.Version == SessionRecordVersion &&
		r.BotName != "" &&
		r.BearerToken != "" &&
		len(r.SessionSeed) > 0 &&
		len(r.Delegation.Delegations) > 0 &&
		!r.IssuedAt.IsZero() &&
		r.Lifetime > 0
}

// Balance is one asset position reported by the trading API.
type Balance struct {
	TokenID string `json:"token_id"`
	Ticker  string `json:"ticker"`
	Amount  uint64 `json:"amount"`
}

// TradeSide is the direction of a trade.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// TradeOrder is a trade request routed through an authenticated session.
type TradeOrder struct {
	TokenID string    `json:"token_id"`
	Side    TradeSide `json:"side"`
	// AmountSats for buys (spend), AmountTokens for sells.
	AmountSats   uint64 `json:"amount_sats,omitempty"`
	AmountTokens uint64 `json:"amount_tokens,omitempty"`
}

// WithdrawRequest moves funds out to an external address. The engine only
// inspects amount and address, enough to route the signed request.
type WithdrawRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// TokenInfo describes a known tradable token.
type TokenInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Ticker    string `json:"ticker"`
	Marketcap uint64 `json:"marketcap"`
	Bonded    bool   `json:"bonded"`
}
