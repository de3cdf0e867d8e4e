// Package tokens resolves operator-facing token references (id, name or
// ticker) to concrete token records. Resolution order: the built-in table,
// the operator's tokens.yaml, the local lookup cache, and finally the
// trading API search endpoint.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"odinbots/internal/domain"
)

// ErrUnknownToken reports a reference no source could resolve.
var ErrUnknownToken = errors.New("unknown token")

// builtin covers the tokens every deployment knows without configuration.
var builtin = []domain.TokenInfo{
	{ID: "btc", Name: "Bitcoin", Ticker: "BTC", Bonded: true},
	{ID: "ckbtc", Name: "ckBTC", Ticker: "CKBTC", Bonded: true},
}

// userFile is the shape of tokens.yaml.
type userFile struct {
	Tokens map[string]userToken `yaml:"tokens"`
}

type userToken struct {
	Name      string `yaml:"name"`
	Ticker    string `yaml:"ticker"`
	Marketcap uint64 `yaml:"marketcap"`
}

// Registry merges the token sources behind one lookup.
type Registry struct {
	known []domain.TokenInfo
	cache *Cache
	api   domain.TradingAPI
}

// NewRegistry loads tokens.yaml from path when it exists and layers it
// over the built-ins. cache and api may each be nil; absent sources are
// skipped during resolution.
func NewRegistry(path string, cache *Cache, api domain.TradingAPI) (*Registry, error) {
	known := append([]domain.TokenInfo(nil), builtin...)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err == nil {
			var uf userFile
			if uerr := yaml.Unmarshal(raw, &uf); uerr != nil {
				return nil, fmt.Errorf("parse %s: %w", path, uerr)
			}
			for id, t := range uf.Tokens {
				known = upsert(known, domain.TokenInfo{
					ID:        id,
					Name:      t.Name,
					Ticker:    t.Ticker,
					Marketcap: t.Marketcap,
					Bonded:    true,
				})
			}
		}
	}

	return &Registry{known: known, cache: cache, api: api}, nil
}

// upsert replaces a known token by id or appends a new one. User entries
// win over built-ins.
func upsert(list []domain.TokenInfo, t domain.TokenInfo) []domain.TokenInfo {
	for i, existing := range list {
		if existing.ID == t.ID {
			list[i] = t
			return list
		}
	}
	return append(list, t)
}

// Lookup resolves ref against the merged known table only, no I/O. Exact
// id match wins; otherwise name and ticker match case-insensitively, the
// highest marketcap breaking ties.
func (r *Registry) Lookup(ref string) (domain.TokenInfo, bool) {
	return pick(r.known, ref)
}

// Resolve tries the known table, then the local cache, then the trading
// API. API results are written back to the cache before selection.
func (r *Registry) Resolve(ctx context.Context, ref string) (domain.TokenInfo, error) {
	if t, ok := r.Lookup(ref); ok {
		return t, nil
	}

	if r.cache != nil {
		cached, err := r.cache.Fresh(ref)
		if err == nil {
			if t, ok := pick(cached, ref); ok {
				return t, nil
			}
		}
	}

	if r.api == nil {
		return domain.TokenInfo{}, fmt.Errorf("%w: %q", ErrUnknownToken, ref)
	}
	found, err := r.api.SearchTokens(ctx, ref)
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("search token %q: %w", ref, err)
	}
	if r.cache != nil {
		// A failed cache write only costs the next lookup a round trip.
		_ = r.cache.Put(ref, found)
	}
	if t, ok := pick(found, ref); ok {
		return t, nil
	}
	return domain.TokenInfo{}, fmt.Errorf("%w: %q", ErrUnknownToken, ref)
}

// pick applies the selection rule to a candidate list.
func pick(list []domain.TokenInfo, ref string) (domain.TokenInfo, bool) {
	for _, t := range list {
		if t.ID == ref {
			return t, true
		}
	}
	lref := strings.ToLower(ref)
	var matches []domain.TokenInfo
	for _, t := range list {
		if strings.ToLower(t.Name) == lref || strings.ToLower(t.Ticker) == lref {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return domain.TokenInfo{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Marketcap > matches[j].Marketcap
	})
	return matches[0], true
}
