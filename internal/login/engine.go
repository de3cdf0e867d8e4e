package login

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"odinbots/internal/authority"
	"odinbots/internal/delegation"
	"odinbots/internal/domain"
	"odinbots/internal/identity"
)

// Step names carried in StepError so the operator can tell which part of
// the exchange failed.
const (
	StepRequestPublicKey = "request-public-key"
	StepRequestChallenge = "request-challenge"
	StepSignChallenge    = "sign-challenge"
	StepSubmitProof      = "submit-proof"
	StepExchangeToken    = "exchange-token"
)

// An expired challenge is recovered by fetching a fresh one, at most once.
const freshChallengeAttempts = 2

// defaultTokenLifetime caps a session when the bearer token carries no
// usable expiry of its own. The delegation itself usually lasts longer;
// the token is the binding constraint.
const defaultTokenLifetime = 24 * time.Hour

// PaymentSource supplies a fee payment reference when the signing
// authority charges for signatures. The engine passes the payment through
// without inspecting it.
type PaymentSource interface {
	PaymentFor(ctx context.Context, fee domain.FeeToken) (*domain.FeePayment, error)
}

// Engine executes the delegation protocol for one bot per call.
type Engine struct {
	signer     domain.SigningAuthority
	challenger domain.ChallengeAuthority
	trading    domain.TradingAPI
	payments   PaymentSource
	clock      domain.Clock
	log        *slog.Logger
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithPaymentSource wires a fee payment source.
func WithPaymentSource(p PaymentSource) Option { return func(e *Engine) { e.payments = p } }

// WithClock pins the engine's clock.
func WithClock(c domain.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// New builds an engine over the three remote authorities.
func New(signer domain.SigningAuthority, challenger domain.ChallengeAuthority, trading domain.TradingAPI, opts ...Option) *Engine {
	e := &Engine{
		signer:     signer,
		challenger: challenger,
		trading:    trading,
		clock:      time.Now,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

var _ domain.Authenticator = (*Engine)(nil)

// Authenticate runs the full exchange and returns a complete session
// record. It never caches anything itself; that is the session cache's job.
func (e *Engine) Authenticate(ctx context.Context, bot domain.BotName) (domain.SessionRecord, error) {
	if err := identity.ValidateName(bot); err != nil {
		return domain.SessionRecord{}, err
	}

	// Step 1: fetch the bot's public key and address from the signing
	// authority, then cross-check the address against local derivation.
	var (
		pub  []byte
		addr domain.Address
	)
	err := retryTransport(ctx, func() error {
		p, a, err := e.signer.BotKey(ctx, bot)
		if err != nil {
			return err
		}
		pub, addr = p, a
		return nil
	})
	if err != nil {
		return domain.SessionRecord{}, &domain.StepError{Step: StepRequestPublicKey, Err: err}
	}
	if local := identity.AddressFor(pub); local != addr {
		return domain.SessionRecord{}, &domain.StepError{
			Step: StepRequestPublicKey,
			Err:  fmt.Errorf("%w: address mismatch (authority %s, local %s)", domain.ErrAuthorityRejected, addr, local),
		}
	}
	e.log.Debug("bot key fetched", "bot", string(bot), "address", string(addr))

	for attempt := 0; ; attempt++ {
		rec, err := e.attempt(ctx, bot, pub, addr)
		if errors.Is(err, domain.ErrExpiredChallenge) && attempt+1 < freshChallengeAttempts {
			e.log.Debug("challenge expired, fetching a fresh one", "bot", string(bot))
			continue
		}
		return rec, err
	}
}

// attempt runs steps 2-5 against one challenge. An expired challenge
// surfaces to the caller, which re-runs with a fresh one.
func (e *Engine) attempt(ctx context.Context, bot domain.BotName, pub []byte, addr domain.Address) (domain.SessionRecord, error) {
	// Step 2: request a single-use challenge bound to the address.
	var challenge domain.LoginChallenge
	err := retryTransport(ctx, func() error {
		ch, err := e.challenger.PrepareLogin(ctx, addr)
		if err != nil {
			return err
		}
		challenge = ch
		return nil
	})
	if err != nil {
		return domain.SessionRecord{}, &domain.StepError{Step: StepRequestChallenge, Err: err}
	}

	// Step 3: have the signing authority sign the challenge hash. Fee
	// payment, when demanded, is resolved once and passed through.
	payment, err := e.resolvePayment(ctx)
	if err != nil {
		return domain.SessionRecord{}, &domain.StepError{Step: StepSignChallenge, Err: err}
	}
	hash := sha256.Sum256([]byte(challenge.Message))
	var signature []byte
	err = retryTransport(ctx, func() error {
		sig, err := e.signer.Sign(ctx, bot, hash[:], payment)
		if err != nil {
			return err
		}
		signature = sig
		return nil
	})
	if err != nil {
		return domain.SessionRecord{}, &domain.StepError{Step: StepSignChallenge, Err: err}
	}

	// Step 4: generate the ephemeral session key, submit the proof, fetch
	// the delegation, and verify every link before trusting any of it.
	sessionPub, sessionPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.SessionRecord{}, &domain.StepError{Step: StepSubmitProof, Err: err}
	}
	proof := domain.LoginProof{
		Address:          addr,
		PublicKey:        pub,
		Challenge:        challenge.Message,
		Signature:        signature,
		SessionPublicKey: sessionPub,
	}
	var grant domain.LoginGrant
	err = retryTransport(ctx, func() error {
		g, err := e.challenger.Login(ctx, proof)
		if err != nil {
			return err
		}
		grant = g
		return nil
	})
	if err != nil {
		return domain.SessionRecord{}, &domain.StepError{Step: StepSubmitProof, Err: err}
	}

	var signed domain.SignedDelegation
	err = retryDelegationPoll(ctx, func() error {
		sd, err := e.challenger.Delegation(ctx, addr, sessionPub, grant.Expiration)
		if err != nil {
			return err
		}
		signed = sd
		return nil
	})
	if err != nil {
		return domain.SessionRecord{}, &domain.StepError{Step: StepSubmitProof, Err: err}
	}

	chain := domain.DelegationChain{
		PublicKey:   grant.UserPublicKey,
		Delegations: []domain.SignedDelegation{signed},
	}
	if err := delegation.Verify(chain, e.clock()); err != nil {
		// Never cache or present a chain that fails any link.
		return domain.SessionRecord{}, &domain.StepError{Step: StepSubmitProof, Err: err}
	}

	// Step 5: exchange the verified delegation for a bearer token.
	now := e.clock()
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	tokenReq := domain.TokenRequest{
		TimestampMillis: timestamp,
		Signature:       ed25519.Sign(sessionPriv, []byte(timestamp)),
		Delegation:      chain,
	}
	var token string
	err = retryTransport(ctx, func() error {
		t, err := e.trading.ExchangeDelegation(ctx, tokenReq)
		if err != nil {
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		return domain.SessionRecord{}, &domain.StepError{Step: StepExchangeToken, Err: err}
	}

	lifetime := authority.TokenLifetime(token, now, defaultTokenLifetime)
	if d := time.Unix(0, grant.Expiration).Sub(now); d > 0 && d < lifetime {
		lifetime = d
	}
	rec := domain.SessionRecord{
		Version:     domain.SessionRecordVersion,
		BotName:     bot,
		Address:     addr,
		Principal:   identity.PrincipalFor(grant.UserPublicKey),
		BearerToken: token,
		SessionSeed: sessionPriv.Seed(),
		Delegation:  chain,
		IssuedAt:    now,
		Lifetime:    lifetime,
		ExpiresAt:   now.Add(lifetime),
	}
	e.log.Info("authenticated", "bot", string(bot), "principal", string(rec.Principal), "expires_at", rec.ExpiresAt)
	return rec, nil
}

// resolvePayment checks the authority's fee requirements and asks the
// payment source for a matching payment. No fees configured means signing
// is free; fees without a payment source is a PaymentRequired failure the
// caller must remediate.
func (e *Engine) resolvePayment(ctx context.Context) (*domain.FeePayment, error) {
	var tokens []domain.FeeToken
	err := retryTransport(ctx, func() error {
		t, err := e.signer.FeeTokens(ctx)
		if err != nil {
			return err
		}
		tokens = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	if e.payments == nil {
		return nil, fmt.Errorf("%w: signing fee configured but no payment source supplied", domain.ErrPaymentRequired)
	}
	fee := pickFeeToken(tokens)
	return e.payments.PaymentFor(ctx, fee)
}

// pickFeeToken prefers ckBTC, the ledger every wallet here holds, falling
// back to whatever the authority lists first.
func pickFeeToken(tokens []domain.FeeToken) domain.FeeToken {
	for _, t := range tokens {
		if t.TokenName == "ckBTC" {
			return t
		}
	}
	return tokens[0]
}
