package login

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"odinbots/internal/delegation"
	"odinbots/internal/domain"
	"odinbots/internal/identity"
)

// fakeSigner plays the signing authority for one bot key.
type fakeSigner struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey

	addrOverride domain.Address
	fees         []domain.FeeToken
	botKeyErrs   []error // consumed one per call before succeeding

	botKeyCalls int32
	signCalls   int32
	lastPayment *domain.FeePayment
}

func newFakeSigner(t *testing.T) *fakeSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &fakeSigner{pub: pub, priv: priv}
}

func (f *fakeSigner) BotKey(ctx context.Context, name domain.BotName) ([]byte, domain.Address, error) {
	n := atomic.AddInt32(&f.botKeyCalls, 1)
	if int(n) <= len(f.botKeyErrs) {
		return nil, "", f.botKeyErrs[n-1]
	}
	addr := f.addrOverride
	if addr == "" {
		addr = identity.AddressFor(f.pub)
	}
	return f.pub, addr, nil
}

func (f *fakeSigner) FeeTokens(ctx context.Context) ([]domain.FeeToken, error) {
	return f.fees, nil
}

func (f *fakeSigner) Sign(ctx context.Context, name domain.BotName, messageHash []byte, payment *domain.FeePayment) ([]byte, error) {
	atomic.AddInt32(&f.signCalls, 1)
	f.lastPayment = payment
	return ed25519.Sign(f.priv, messageHash), nil
}

// fakeChallenger plays the challenge authority, issuing delegations signed
// with its user key.
type fakeChallenger struct {
	userPub  ed25519.PublicKey
	userPriv ed25519.PrivateKey
	now      time.Time

	loginErrs      []error // consumed one per call before succeeding
	tamperChain    bool
	expiredChain   bool
	prepareCalls   int32
	loginCalls     int32
	delegationWait int32 // Delegation fails this many times before success
}

func newFakeChallenger(t *testing.T, now time.Time) *fakeChallenger {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &fakeChallenger{userPub: pub, userPriv: priv, now: now}
}

func (f *fakeChallenger) PrepareLogin(ctx context.Context, addr domain.Address) (domain.LoginChallenge, error) {
	n := atomic.AddInt32(&f.prepareCalls, 1)
	return domain.LoginChallenge{
		Address:   addr,
		Message:   fmt.Sprintf("sign in as %s, nonce %d", addr, n),
		ExpiresAt: f.now.Add(5 * time.Minute),
	}, nil
}

func (f *fakeChallenger) Login(ctx context.Context, proof domain.LoginProof) (domain.LoginGrant, error) {
	n := atomic.AddInt32(&f.loginCalls, 1)
	if int(n) <= len(f.loginErrs) {
		return domain.LoginGrant{}, f.loginErrs[n-1]
	}
	return domain.LoginGrant{
		Expiration:    f.now.Add(time.Hour).UnixNano(),
		UserPublicKey: f.userPub,
	}, nil
}

func (f *fakeChallenger) Delegation(ctx context.Context, addr domain.Address, sessionPub []byte, expiration int64) (domain.SignedDelegation, error) {
	if atomic.AddInt32(&f.delegationWait, -1) >= 0 {
		return domain.SignedDelegation{}, fmt.Errorf("%w: delegation not ready", domain.ErrAuthorityRejected)
	}
	if f.expiredChain {
		expiration = f.now.Add(-time.Second).UnixNano()
	}
	sd := delegation.SignLink(f.userPriv, domain.DelegationLink{Pubkey: sessionPub, Expiration: expiration})
	if f.tamperChain {
		sd.Signature[0] ^= 0xff
	}
	return sd, nil
}

// fakeTrading plays the trading API's token exchange.
type fakeTrading struct {
	token         string
	exchangeCalls int32
}

func (f *fakeTrading) ExchangeDelegation(ctx context.Context, req domain.TokenRequest) (string, error) {
	atomic.AddInt32(&f.exchangeCalls, 1)
	if len(req.Delegation.Delegations) == 0 {
		return "", errors.New("empty delegation")
	}
	return f.token, nil
}

func (f *fakeTrading) ValidateToken(ctx context.Context, token string) error { return nil }
func (f *fakeTrading) Balances(ctx context.Context, token string, p domain.Principal) ([]domain.Balance, error) {
	return nil, nil
}
func (f *fakeTrading) Trade(ctx context.Context, token string, o domain.TradeOrder) error { return nil }
func (f *fakeTrading) Withdraw(ctx context.Context, token string, r domain.WithdrawRequest) error {
	return nil
}
func (f *fakeTrading) DepositAddress(ctx context.Context, token string, p domain.Principal) (string, error) {
	return "", nil
}
func (f *fakeTrading) SearchTokens(ctx context.Context, q string) ([]domain.TokenInfo, error) {
	return nil, nil
}

func newTestEngine(t *testing.T, now time.Time, opts ...Option) (*Engine, *fakeSigner, *fakeChallenger, *fakeTrading) {
	t.Helper()
	signer := newFakeSigner(t)
	challenger := newFakeChallenger(t, now)
	trading := &fakeTrading{token: "opaque-bearer-token"}
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(signer, challenger, trading, opts...), signer, challenger, trading
}

func TestAuthenticateHappyPath(t *testing.T) {
	now := time.Now()
	e, signer, challenger, trading := newTestEngine(t, now)

	rec, err := e.Authenticate(context.Background(), "alpha")
	require.NoError(t, err)

	require.Equal(t, domain.BotName("alpha"), rec.BotName)
	require.Equal(t, identity.AddressFor(signer.pub), rec.Address)
	require.Equal(t, identity.PrincipalFor(challenger.userPub), rec.Principal)
	require.Equal(t, "opaque-bearer-token", rec.BearerToken)
	require.True(t, rec.Complete())

	// The chain links user key to the generated session key and verifies.
	require.NoError(t, delegation.Verify(rec.Delegation, now))
	sessionPriv := ed25519.NewKeyFromSeed(rec.SessionSeed)
	require.Equal(t, []byte(sessionPriv.Public().(ed25519.PublicKey)), rec.Delegation.SessionPublicKey())

	// Opaque token: lifetime falls back to 24h, then clamps to the grant's
	// one hour expiry.
	require.Equal(t, time.Hour, rec.Lifetime)
	require.EqualValues(t, 1, signer.botKeyCalls)
	require.EqualValues(t, 1, signer.signCalls)
	require.EqualValues(t, 1, trading.exchangeCalls)
}

func TestAuthenticateInvalidName(t *testing.T) {
	e, signer, _, _ := newTestEngine(t, time.Now())

	_, err := e.Authenticate(context.Background(), "bad/name")
	require.ErrorIs(t, err, domain.ErrInvalidName)
	require.EqualValues(t, 0, signer.botKeyCalls)
}

func TestAuthenticateAddressMismatch(t *testing.T) {
	now := time.Now()
	e, signer, _, _ := newTestEngine(t, now)
	signer.addrOverride = "claimed-but-wrong"

	_, err := e.Authenticate(context.Background(), "alpha")
	var step *domain.StepError
	require.ErrorAs(t, err, &step)
	require.Equal(t, StepRequestPublicKey, step.Step)
	require.ErrorIs(t, err, domain.ErrAuthorityRejected)
	require.EqualValues(t, 0, signer.signCalls)
}

func TestAuthenticateRetriesTransportFailure(t *testing.T) {
	now := time.Now()
	e, signer, _, _ := newTestEngine(t, now)
	signer.botKeyErrs = []error{fmt.Errorf("%w: connection reset", domain.ErrTransport)}

	_, err := e.Authenticate(context.Background(), "alpha")
	require.NoError(t, err)
	require.EqualValues(t, 2, signer.botKeyCalls)
}

func TestAuthenticateFreshChallengeOnExpiry(t *testing.T) {
	now := time.Now()
	e, _, challenger, _ := newTestEngine(t, now)
	challenger.loginErrs = []error{fmt.Errorf("%w: too slow", domain.ErrExpiredChallenge)}

	_, err := e.Authenticate(context.Background(), "alpha")
	require.NoError(t, err)
	require.EqualValues(t, 2, challenger.prepareCalls)
}

func TestAuthenticateGivesUpAfterSecondExpiry(t *testing.T) {
	now := time.Now()
	e, _, challenger, _ := newTestEngine(t, now)
	challenger.loginErrs = []error{
		fmt.Errorf("%w: too slow", domain.ErrExpiredChallenge),
		fmt.Errorf("%w: too slow again", domain.ErrExpiredChallenge),
	}

	_, err := e.Authenticate(context.Background(), "alpha")
	require.ErrorIs(t, err, domain.ErrExpiredChallenge)
	var step *domain.StepError
	require.ErrorAs(t, err, &step)
	require.Equal(t, StepSubmitProof, step.Step)
	require.EqualValues(t, 2, challenger.prepareCalls)
}

func TestAuthenticateFeeWithoutPaymentSource(t *testing.T) {
	now := time.Now()
	e, signer, _, _ := newTestEngine(t, now)
	signer.fees = []domain.FeeToken{{TokenName: "ckBTC", TokenLedger: "ledger-1", Fee: 100}}

	_, err := e.Authenticate(context.Background(), "alpha")
	require.ErrorIs(t, err, domain.ErrPaymentRequired)
	var step *domain.StepError
	require.ErrorAs(t, err, &step)
	require.Equal(t, StepSignChallenge, step.Step)
}

type fixedPayments struct {
	payment domain.FeePayment
	lastFee domain.FeeToken
}

func (p *fixedPayments) PaymentFor(ctx context.Context, fee domain.FeeToken) (*domain.FeePayment, error) {
	p.lastFee = fee
	return &p.payment, nil
}

func TestAuthenticateRoutesFeePayment(t *testing.T) {
	now := time.Now()
	payments := &fixedPayments{payment: domain.FeePayment{TokenName: "ckBTC", TokenLedger: "ledger-1", Amount: 100}}
	e, signer, _, _ := newTestEngine(t, now, WithPaymentSource(payments))
	signer.fees = []domain.FeeToken{
		{TokenName: "OTHER", TokenLedger: "ledger-9", Fee: 5},
		{TokenName: "ckBTC", TokenLedger: "ledger-1", Fee: 100},
	}

	_, err := e.Authenticate(context.Background(), "alpha")
	require.NoError(t, err)
	// ckBTC is preferred over the first-listed token.
	require.Equal(t, "ckBTC", payments.lastFee.TokenName)
	require.NotNil(t, signer.lastPayment)
	require.Equal(t, payments.payment, *signer.lastPayment)
}

func TestAuthenticateRejectsTamperedDelegation(t *testing.T) {
	now := time.Now()
	e, _, challenger, trading := newTestEngine(t, now)
	challenger.tamperChain = true

	_, err := e.Authenticate(context.Background(), "alpha")
	require.ErrorIs(t, err, domain.ErrDelegationVerification)
	var step *domain.StepError
	require.ErrorAs(t, err, &step)
	require.Equal(t, StepSubmitProof, step.Step)
	// A chain that fails verification never reaches the token exchange.
	require.EqualValues(t, 0, trading.exchangeCalls)
}

func TestAuthenticateRejectsExpiredDelegation(t *testing.T) {
	now := time.Now()
	e, _, challenger, trading := newTestEngine(t, now)
	challenger.expiredChain = true

	_, err := e.Authenticate(context.Background(), "alpha")
	require.ErrorIs(t, err, domain.ErrDelegationVerification)
	require.EqualValues(t, 0, trading.exchangeCalls)
}

func TestAuthenticatePollsDelegation(t *testing.T) {
	if testing.Short() {
		t.Skip("polls on a 2s interval")
	}
	now := time.Now()
	e, _, challenger, _ := newTestEngine(t, now)
	challenger.delegationWait = 1

	_, err := e.Authenticate(context.Background(), "alpha")
	require.NoError(t, err)
}
