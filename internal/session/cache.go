package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"odinbots/internal/domain"
)

// Cache is the session cache for all bots. A nil store means persistence
// is disabled: every call authenticates fresh and nothing touches disk,
// trading latency for zero credential residue.
type Cache struct {
	store   domain.SessionStore
	auth    domain.Authenticator
	clock   domain.Clock
	log     *slog.Logger
	metrics *Metrics

	mu    sync.Mutex
	locks map[domain.BotName]*sync.Mutex
}

// Option tweaks cache construction.
type Option func(*Cache)

// WithClock pins the cache clock.
func WithClock(c domain.Clock) Option { return func(ca *Cache) { ca.clock = c } }

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option { return func(ca *Cache) { ca.log = l } }

// WithMetrics attaches counters.
func WithMetrics(m *Metrics) Option { return func(ca *Cache) { ca.metrics = m } }

// New builds a cache over store and auth. Pass a nil store to disable
// persistence.
func New(store domain.SessionStore, auth domain.Authenticator, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		auth:  auth,
		clock: time.Now,
		log:   slog.Default(),
		locks: make(map[domain.BotName]*sync.Mutex),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrAuthenticate returns a live session record for bot, running the
// delegation protocol only when the cached record is absent, expired or
// corrupt. Calls for the same bot serialize so at most one protocol run
// executes per bot at a time; calls for different bots are independent.
func (c *Cache) GetOrAuthenticate(ctx context.Context, bot domain.BotName) (domain.SessionRecord, error) {
	lock := c.lockFor(bot)
	lock.Lock()
	defer lock.Unlock()

	if c.store != nil {
		rec, ok, err := c.store.Load(bot)
		switch {
		case errors.Is(err, domain.ErrCorruptSessionRecord):
			c.count(func(m *Metrics) { m.CorruptDiscards.Inc() })
			c.log.Warn("discarding corrupt session record", "bot", string(bot), "err", err)
			_ = c.store.Delete(bot)
		case err != nil:
			return domain.SessionRecord{}, err
		case ok && !rec.Expired(c.clock()):
			c.count(func(m *Metrics) { m.Hits.Inc() })
			return rec, nil
		case ok:
			c.log.Debug("cached session expired", "bot", string(bot), "issued_at", rec.IssuedAt)
		}
	}

	c.count(func(m *Metrics) { m.Misses.Inc() })
	rec, err := c.auth.Authenticate(ctx, bot)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	c.count(func(m *Metrics) { m.Refreshes.Inc() })
	if c.store != nil {
		if err := c.store.Save(rec); err != nil {
			return domain.SessionRecord{}, err
		}
	}
	return rec, nil
}

// Invalidate clears the record for bot, forcing the next call to
// re-authenticate.
func (c *Cache) Invalidate(bot domain.BotName) error {
	lock := c.lockFor(bot)
	lock.Lock()
	defer lock.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Delete(bot)
}

// Authorized runs fn with a live record. If fn reports the bearer token was
// rejected, the record is invalidated and fn retried exactly once with a
// fresh one.
func (c *Cache) Authorized(ctx context.Context, bot domain.BotName, fn func(domain.SessionRecord) error) error {
	rec, err := c.GetOrAuthenticate(ctx, bot)
	if err != nil {
		return err
	}
	err = fn(rec)
	if !errors.Is(err, domain.ErrUnauthorized) {
		return err
	}

	c.log.Info("bearer token rejected, re-authenticating", "bot", string(bot))
	if ierr := c.Invalidate(bot); ierr != nil {
		return ierr
	}
	rec, err = c.GetOrAuthenticate(ctx, bot)
	if err != nil {
		return &domain.StepError{Step: "re-authenticate", CredentialsInvalidated: true, Err: err}
	}
	return fn(rec)
}

// Update persists a modified record (cached deposit address and the like)
// without touching its validity window.
func (c *Cache) Update(rec domain.SessionRecord) error {
	lock := c.lockFor(rec.BotName)
	lock.Lock()
	defer lock.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Save(rec)
}

func (c *Cache) lockFor(bot domain.BotName) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[bot]
	if !ok {
		l = &sync.Mutex{}
		c.locks[bot] = l
	}
	return l
}

func (c *Cache) count(f func(*Metrics)) {
	if c.metrics != nil {
		f(c.metrics)
	}
}
