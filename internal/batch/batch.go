// Package batch fans one operation out across a set of named bots with
// bounded concurrency. Failures are strictly per-bot: one bot's error is
// reported in its outcome and never aborts the rest of the batch.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"odinbots/internal/domain"
)

// DefaultConcurrency bounds simultaneous per-bot operations.
const DefaultConcurrency = 5

// Outcome is one bot's result: a value or an error, never both.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Run executes op for every name and returns an outcome per bot. limit <= 0
// falls back to DefaultConcurrency. Ordering across bots is not guaranteed;
// the returned map is keyed by bot name. Cancelling ctx stops new bots from
// starting; bots already running see the cancelled context at their next
// remote call and fail cleanly rather than being cut off mid-write.
func Run[T any](ctx context.Context, names []domain.BotName, limit int, op func(context.Context, domain.BotName) (T, error)) map[domain.BotName]Outcome[T] {
	results := make(map[domain.BotName]Outcome[T], len(names))
	if len(names) == 0 {
		return results
	}
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	type keyed struct {
		name domain.BotName
		out  Outcome[T]
	}
	ch := make(chan keyed, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, name := range names {
		name := name
		g.Go(func() error {
			ch <- keyed{name: name, out: runOne(gctx, name, op)}
			// Always nil: errors are per-bot outcomes, and a non-nil return
			// would cancel gctx for every sibling.
			return nil
		})
	}
	_ = g.Wait()
	close(ch)

	for k := range ch {
		results[k.name] = k.out
	}
	return results
}

// runOne isolates a single bot's execution, converting panics into errors
// so a misbehaving operation cannot take the whole batch down.
func runOne[T any](ctx context.Context, name domain.BotName, op func(context.Context, domain.BotName) (T, error)) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	out.Value, out.Err = op(ctx, name)
	return out
}

// Errs extracts the failed outcomes, keyed by bot name.
func Errs[T any](results map[domain.BotName]Outcome[T]) map[domain.BotName]error {
	errs := make(map[domain.BotName]error)
	for name, out := range results {
		if out.Err != nil {
			errs[name] = out.Err
		}
	}
	return errs
}
