// Package app wires the configuration into a working object graph: root
// key, authority clients, login engine, session cache and token registry.
// Commands depend on App, never on individual constructors.
package app

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"odinbots/internal/authority"
	"odinbots/internal/certverify"
	"odinbots/internal/config"
	"odinbots/internal/domain"
	"odinbots/internal/keyring"
	"odinbots/internal/login"
	"odinbots/internal/session"
	"odinbots/internal/tokens"
)

// App holds the wired object graph for one invocation.
type App struct {
	Cfg config.Config
	Log *slog.Logger

	Keyring  *keyring.Keyring
	Trading  domain.TradingAPI
	Sessions *session.Cache
	Tokens   *tokens.Registry
	Verifier *certverify.Verifier
	Metrics  *session.Metrics
	Registry *prometheus.Registry

	tokenCache *tokens.Cache
}

// New wires the full graph. It fails fast on a missing root key, an
// unusable certificate-verification setup, or a broken token registry,
// before any command logic runs.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	kr, err := keyring.Open(cfg.Home)
	if err != nil {
		return nil, err
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		kr.Close()
		return nil, err
	}

	timeout := cfg.Timeout()
	authorityURL := cfg.ResolvedAuthorityURL()
	signer := authority.NewSigner(authorityURL, nil, timeout, cfg.SignerServiceID(), kr)
	if verifier != nil {
		signer.WithVerifier(verifier)
	}
	challenger := authority.NewChallenger(authorityURL, nil, timeout)
	trading := authority.NewTrading(cfg.APIURL, nil, timeout)

	engine := login.New(signer, challenger, trading, login.WithLogger(log))

	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics(reg)

	var store domain.SessionStore
	if cfg.CacheSessions {
		store = session.NewFileStore(cfg.CacheDir(), string(cfg.Network))
	}
	cache := session.New(store, engine,
		session.WithLogger(log),
		session.WithMetrics(metrics),
	)

	tokenCache, err := tokens.OpenCache(filepath.Join(cfg.CacheDir(), "token-cache.db"), 0)
	if err != nil {
		log.Warn("token cache unavailable, lookups will always hit the API", "error", err)
		tokenCache = nil
	}
	registry, err := tokens.NewRegistry(filepath.Join(cfg.Home, "tokens.yaml"), tokenCache, trading)
	if err != nil {
		kr.Close()
		return nil, err
	}

	return &App{
		Cfg:        cfg,
		Log:        log,
		Keyring:    kr,
		Trading:    trading,
		Sessions:   cache,
		Tokens:     registry,
		Verifier:   verifier,
		Metrics:    metrics,
		Registry:   reg,
		tokenCache: tokenCache,
	}, nil
}

// newVerifier builds the certificate verifier when enabled, decoding the
// configured authority key.
func newVerifier(cfg config.Config) (*certverify.Verifier, error) {
	if !cfg.VerifyCertificates {
		return nil, nil
	}
	key, err := hex.DecodeString(cfg.AuthorityKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode authority_key_hex: %w", err)
	}
	return certverify.New(certverify.Options{
		Enabled:      true,
		AuthorityKey: key,
	})
}

// LogSessionStats gathers the registered session counters and logs one
// summary line, so a verbose batch run shows how much of its work was
// answered from cache versus full delegation protocol runs.
func (a *App) LogSessionStats() {
	if a.Registry == nil {
		return
	}
	families, err := a.Registry.Gather()
	if err != nil {
		a.Log.Debug("gather session metrics", "error", err)
		return
	}
	totals := make(map[string]float64, len(families))
	for _, mf := range families {
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		totals[mf.GetName()] = sum
	}
	a.Log.Debug("session cache stats",
		"hits", totals["odinbots_session_cache_hits_total"],
		"misses", totals["odinbots_session_cache_misses_total"],
		"refreshes", totals["odinbots_session_refreshes_total"],
		"corrupt_discarded", totals["odinbots_session_corrupt_records_discarded_total"],
	)
}

// Close releases held resources: the root key material and the token
// cache database handle.
func (a *App) Close() {
	if a.tokenCache != nil {
		a.tokenCache.Close()
	}
	if a.Keyring != nil {
		a.Keyring.Close()
	}
}
