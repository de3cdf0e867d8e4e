package app

import (
	"context"
	"fmt"

	"odinbots/internal/batch"
	"odinbots/internal/domain"
)

// Login authenticates one bot, reusing a cached session when valid.
func (a *App) Login(ctx context.Context, bot domain.BotName) (domain.SessionRecord, error) {
	return a.Sessions.GetOrAuthenticate(ctx, bot)
}

// LoginAll authenticates every named bot with bounded concurrency.
func (a *App) LoginAll(ctx context.Context, bots []domain.BotName) map[domain.BotName]batch.Outcome[domain.SessionRecord] {
	return batch.Run(ctx, bots, a.Cfg.MaxConcurrency, a.Login)
}

// Balances fetches one bot's asset positions over an authorized session.
func (a *App) Balances(ctx context.Context, bot domain.BotName) ([]domain.Balance, error) {
	var out []domain.Balance
	err := a.Sessions.Authorized(ctx, bot, func(rec domain.SessionRecord) error {
		balances, err := a.Trading.Balances(ctx, rec.BearerToken, rec.Principal)
		if err != nil {
			return err
		}
		out = balances
		return nil
	})
	return out, err
}

// BalancesAll fetches positions for every named bot.
func (a *App) BalancesAll(ctx context.Context, bots []domain.BotName) map[domain.BotName]batch.Outcome[[]domain.Balance] {
	return batch.Run(ctx, bots, a.Cfg.MaxConcurrency, a.Balances)
}

// DepositAddress returns the bot's funding address, cached in the session
// record after the first fetch.
func (a *App) DepositAddress(ctx context.Context, bot domain.BotName) (string, error) {
	var addr string
	err := a.Sessions.Authorized(ctx, bot, func(rec domain.SessionRecord) error {
		if rec.DepositAddress != "" {
			addr = rec.DepositAddress
			return nil
		}
		fetched, err := a.Trading.DepositAddress(ctx, rec.BearerToken, rec.Principal)
		if err != nil {
			return err
		}
		addr = fetched
		rec.DepositAddress = fetched
		if uerr := a.Sessions.Update(rec); uerr != nil {
			a.Log.Warn("caching deposit address failed", "bot", bot, "error", uerr)
		}
		return nil
	})
	return addr, err
}

// DepositAddressAll resolves funding addresses for every named bot.
func (a *App) DepositAddressAll(ctx context.Context, bots []domain.BotName) map[domain.BotName]batch.Outcome[string] {
	return batch.Run(ctx, bots, a.Cfg.MaxConcurrency, a.DepositAddress)
}

// Trade submits one order for one bot. The token reference is resolved
// before the session is touched so an unknown token costs no authentication.
func (a *App) Trade(ctx context.Context, bot domain.BotName, tokenRef string, side domain.TradeSide, amount uint64) error {
	token, err := a.Tokens.Resolve(ctx, tokenRef)
	if err != nil {
		return err
	}
	order := domain.TradeOrder{TokenID: token.ID, Side: side}
	switch side {
	case domain.TradeBuy:
		order.AmountSats = amount
	case domain.TradeSell:
		order.AmountTokens = amount
	default:
		return fmt.Errorf("unknown trade side %q", side)
	}
	return a.Sessions.Authorized(ctx, bot, func(rec domain.SessionRecord) error {
		return a.Trading.Trade(ctx, rec.BearerToken, order)
	})
}

// TradeAll submits the same order for every named bot.
func (a *App) TradeAll(ctx context.Context, bots []domain.BotName, tokenRef string, side domain.TradeSide, amount uint64) map[domain.BotName]batch.Outcome[struct{}] {
	return batch.Run(ctx, bots, a.Cfg.MaxConcurrency, func(ctx context.Context, bot domain.BotName) (struct{}, error) {
		return struct{}{}, a.Trade(ctx, bot, tokenRef, side, amount)
	})
}

// Withdraw moves amount out of the bot's account to an external address.
func (a *App) Withdraw(ctx context.Context, bot domain.BotName, address string, amount uint64) error {
	return a.Sessions.Authorized(ctx, bot, func(rec domain.SessionRecord) error {
		return a.Trading.Withdraw(ctx, rec.BearerToken, domain.WithdrawRequest{
			Address: address,
			Amount:  amount,
		})
	})
}

// Sweep withdraws each bot's full base-asset balance to one address.
// Bots with a zero balance are skipped, reported as a zero amount.
func (a *App) Sweep(ctx context.Context, bots []domain.BotName, address string) map[domain.BotName]batch.Outcome[uint64] {
	return batch.Run(ctx, bots, a.Cfg.MaxConcurrency, func(ctx context.Context, bot domain.BotName) (uint64, error) {
		balances, err := a.Balances(ctx, bot)
		if err != nil {
			return 0, err
		}
		var amount uint64
		for _, b := range balances {
			if b.TokenID == "btc" {
				amount = b.Amount
				break
			}
		}
		if amount == 0 {
			return 0, nil
		}
		if err := a.Withdraw(ctx, bot, address, amount); err != nil {
			return 0, err
		}
		return amount, nil
	})
}

// ClearSessions discards cached sessions for the named bots.
func (a *App) ClearSessions(bots []domain.BotName) error {
	for _, bot := range bots {
		if err := a.Sessions.Invalidate(bot); err != nil {
			return fmt.Errorf("clear session for %s: %w", bot, err)
		}
	}
	return nil
}
