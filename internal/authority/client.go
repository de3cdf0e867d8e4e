package authority

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"odinbots/internal/domain"
)

const defaultTimeout = 30 * time.Second

// RequestSigner authenticates outbound requests with the operator's root
// key. Satisfied by the keyring.
type RequestSigner interface {
	PublicKey() ed25519.PublicKey
	Sign(msg []byte) []byte
}

// Client is the shared HTTP plumbing for one remote base URL.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	creds   RequestSigner
}

// NewClient builds a client for base. httpc may be nil (http.DefaultClient).
// A zero timeout falls back to 30s per call.
func NewClient(base string, httpc *http.Client, timeout time.Duration) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: base,
		http: httpc,
		// Authorities throttle aggressive clients; stay under their radar.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		timeout: timeout,
	}
}

// WithRequestSigner makes every call carry a root-key signature over the
// request body, proving the operator controls the root identity the bot
// keys are derived from.
func (c *Client) WithRequestSigner(creds RequestSigner) *Client {
	c.creds = creds
	return c
}

// errorEnvelope is the wire form of an authority-reported error.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) postJSON(ctx context.Context, path string, bearer string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authenticate(req, body)
	return c.do(ctx, req, bearer, out)
}

func (c *Client) getJSON(ctx context.Context, path string, bearer string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	c.authenticate(req, nil)
	return c.do(ctx, req, bearer, out)
}

// authenticate attaches the root-key proof headers when a request signer is
// configured. The signature covers the method, path and body digest.
func (c *Client) authenticate(req *http.Request, body []byte) {
	if c.creds == nil {
		return
	}
	digest := sha256.Sum256(body)
	msg := fmt.Sprintf("%s %s %x", req.Method, req.URL.Path, digest)
	req.Header.Set("X-Root-Public-Key", hex.EncodeToString(c.creds.PublicKey()))
	req.Header.Set("X-Root-Signature", hex.EncodeToString(c.creds.Sign([]byte(msg))))
}

func (c *Client) do(ctx context.Context, req *http.Request, bearer string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts land here too; both are retryable transport failures.
		return fmt.Errorf("%w: %s %s: %v", domain.ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s: %v", domain.ErrTransport, req.URL.Path, err)
		}
	}
	return nil
}

// decodeError maps a non-2xx response onto the typed taxonomy. Unknown
// codes become authority rejections: a response we cannot classify must
// never be treated as retryable-forever or, worse, as success.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)

	msg := env.Error.Message
	if msg == "" {
		msg = resp.Status
	}
	switch {
	case env.Error.Code == "payment_required" || resp.StatusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", domain.ErrPaymentRequired, msg)
	case env.Error.Code == "expired_challenge":
		return fmt.Errorf("%w: %s", domain.ErrExpiredChallenge, msg)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", domain.ErrTransport, msg)
	default:
		return fmt.Errorf("%w: %s (%s)", domain.ErrAuthorityRejected, msg, env.Error.Code)
	}
}
