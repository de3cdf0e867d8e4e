package domain

import (
	"context"
	"time"
)

// SigningAuthority is the remote service holding the actual bot signing
// keys. It derives bot keys off (root public key, bot name) and performs
// threshold signing over a 32-byte message hash.
type SigningAuthority interface {
	// BotKey returns the bot's public key and display address. The authority
	// is the source of truth for both.
	BotKey(ctx context.Context, name BotName) (pub []byte, addr Address, err error)

	// FeeTokens lists the tokens accepted as signing fees. Empty means free.
	FeeTokens(ctx context.Context) ([]FeeToken, error)

	// Sign signs messageHash with the bot's remotely-held key. payment is
	// passed through uninspected; nil means none supplied.
	Sign(ctx context.Context, name BotName, messageHash []byte, payment *FeePayment) ([]byte, error)
}

// ChallengeAuthority issues login challenges and converts signed proofs
// into delegations.
type ChallengeAuthority interface {
	PrepareLogin(ctx context.Context, addr Address) (LoginChallenge, error)
	Login(ctx context.Context, proof LoginProof) (LoginGrant, error)
	Delegation(ctx context.Context, addr Address, sessionPub []byte, expiration int64) (SignedDelegation, error)
}

// TradingAPI is the REST surface that exchanges delegations for bearer
// tokens and executes trades. Stale tokens yield ErrUnauthorized.
type TradingAPI interface {
	ExchangeDelegation(ctx context.Context, req TokenRequest) (token string, err error)
	ValidateToken(ctx context.Context, token string) error
	Balances(ctx context.Context, token string, principal Principal) ([]Balance, error)
	Trade(ctx context.Context, token string, order TradeOrder) error
	Withdraw(ctx context.Context, token string, req WithdrawRequest) error
	DepositAddress(ctx context.Context, token string, principal Principal) (string, error)
	SearchTokens(ctx context.Context, query string) ([]TokenInfo, error)
}

// SessionStore persists one session record per bot.
type SessionStore interface {
	Load(bot BotName) (SessionRecord, bool, error)
	Save(rec SessionRecord) error
	Delete(bot BotName) error
}

// Authenticator runs one full delegation protocol exchange for a bot.
type Authenticator interface {
	Authenticate(ctx context.Context, bot BotName) (SessionRecord, error)
}

// Clock abstracts time for expiry decisions so tests can pin it.
type Clock func() time.Time
