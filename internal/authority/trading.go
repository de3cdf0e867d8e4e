package authority

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"odinbots/internal/domain"
)

// TradingClient talks to the trading REST API. Every authenticated call
// carries the bearer token; a stale token yields ErrUnauthorized, which the
// session cache turns into invalidation plus one re-authentication retry.
type TradingClient struct {
	c *Client
}

// NewTrading builds a trading API client for base.
func NewTrading(base string, httpc *http.Client, timeout time.Duration) *TradingClient {
	return &TradingClient{c: NewClient(base, httpc, timeout)}
}

var _ domain.TradingAPI = (*TradingClient)(nil)

type authResponse struct {
	Token string `json:"token"`
}

// ExchangeDelegation presents a verified delegation and a session-key
// signature over a millisecond timestamp, receiving a bearer token.
func (t *TradingClient) ExchangeDelegation(ctx context.Context, req domain.TokenRequest) (string, error) {
	var out authResponse
	if err := t.c.postJSON(ctx, "/v1/auth", "", req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: no token in auth response", domain.ErrAuthorityRejected)
	}
	return out.Token, nil
}

// ValidateToken asks the API whether token is still accepted.
func (t *TradingClient) ValidateToken(ctx context.Context, token string) error {
	return t.c.getJSON(ctx, "/v1/auth", token, nil)
}

type balancesResponse struct {
	Balances []domain.Balance `json:"balances"`
}

// Balances lists the principal's asset positions.
func (t *TradingClient) Balances(ctx context.Context, token string, principal domain.Principal) ([]domain.Balance, error) {
	var out balancesResponse
	path := "/v1/user/" + url.PathEscape(string(principal)) + "/balances"
	if err := t.c.getJSON(ctx, path, token, &out); err != nil {
		return nil, err
	}
	return out.Balances, nil
}

// Trade submits a buy or sell order.
func (t *TradingClient) Trade(ctx context.Context, token string, order domain.TradeOrder) error {
	return t.c.postJSON(ctx, "/v1/trade", token, order, nil)
}

// Withdraw moves funds to an external address.
func (t *TradingClient) Withdraw(ctx context.Context, token string, req domain.WithdrawRequest) error {
	return t.c.postJSON(ctx, "/v1/withdraw", token, req, nil)
}

type depositAddressResponse struct {
	Address string `json:"address"`
}

// DepositAddress returns the principal's deterministic funding address.
func (t *TradingClient) DepositAddress(ctx context.Context, token string, principal domain.Principal) (string, error) {
	var out depositAddressResponse
	path := "/v1/user/" + url.PathEscape(string(principal)) + "/deposit-address"
	if err := t.c.getJSON(ctx, path, token, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

type searchTokensResponse struct {
	Tokens []domain.TokenInfo `json:"tokens"`
}

// SearchTokens queries the platform token index.
func (t *TradingClient) SearchTokens(ctx context.Context, query string) ([]domain.TokenInfo, error) {
	var out searchTokensResponse
	if err := t.c.getJSON(ctx, "/v1/tokens?search="+url.QueryEscape(query), "", &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

// minTokenLifetime floors the window for a token whose exp claim is
// already at or before issuance. The next cache lookup refreshes it
// instead of serving a dead token for the full fallback window.
const minTokenLifetime = time.Minute

// TokenLifetime derives a session lifetime from the bearer token itself.
// When the token is a JWT its exp claim bounds the lifetime; otherwise
// fallback applies. The signature is deliberately not checked here: the
// token is opaque to us and only the issuing API can reject it, this is
// purely a local clamp so a cached session never outlives its token.
func TokenLifetime(token string, issuedAt time.Time, fallback time.Duration) time.Duration {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return fallback
	}
	life := claims.ExpiresAt.Time.Sub(issuedAt)
	if life <= 0 {
		return minTokenLifetime
	}
	if life > fallback {
		return fallback
	}
	return life
}
