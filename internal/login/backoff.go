package login

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"odinbots/internal/domain"
)

// Retry policy for transport failures: 3 attempts, exponential from 500ms,
// factor 2. Fixed constants rather than tunables; the remote authorities
// rate-limit anything more aggressive and anything slower just hides a
// dead network from the operator.
const (
	transportAttempts = 3
	initialInterval   = 500 * time.Millisecond

	// Delegation signatures are committed asynchronously by the authority;
	// poll a few times before giving up.
	delegationPollAttempts = 5
	delegationPollInterval = 2 * time.Second
)

// retryTransport runs op, retrying only transport failures.
func retryTransport(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !domain.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, transportAttempts-1), ctx))
}

// retryDelegationPoll polls op at a constant interval, retrying both
// transport failures and not-ready rejections.
func retryDelegationPoll(ctx context.Context, op func() error) error {
	return backoff.Retry(op,
		backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(delegationPollInterval), delegationPollAttempts-1),
			ctx))
}
