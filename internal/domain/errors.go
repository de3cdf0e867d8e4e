package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Retryability is a property of the sentinel, not the call
// site: transport failures retry with capped backoff, expired challenges
// retry with a fresh challenge, everything else is fatal for the attempt.
var (
	// ErrInvalidName rejects bot names the remote authority does not accept.
	ErrInvalidName = errors.New("invalid bot name")

	// ErrTransport marks network-level failures (timeouts included).
	ErrTransport = errors.New("transport failure")

	// ErrAuthorityRejected marks an authority-reported error. Not retried.
	ErrAuthorityRejected = errors.New("authority rejected request")

	// ErrExpiredChallenge means the login challenge aged out before the
	// proof landed. Recovered by fetching a fresh challenge, never by
	// resubmitting the old one.
	ErrExpiredChallenge = errors.New("login challenge expired")

	// ErrDelegationVerification means a delegation failed local chain
	// verification. Such a delegation is never cached or used.
	ErrDelegationVerification = errors.New("delegation verification failed")

	// ErrPaymentRequired means the signing authority wants a fee the caller
	// did not supply. Surfaced for remediation, never retried.
	ErrPaymentRequired = errors.New("fee payment required")

	// ErrMissingCapability means a requested security feature has no backend
	// available. Raised at initialization, before any trading operation.
	ErrMissingCapability = errors.New("required capability unavailable")

	// ErrCorruptSessionRecord marks an unreadable or incomplete cached
	// record. Recovered by discarding the record and re-authenticating.
	ErrCorruptSessionRecord = errors.New("corrupt session record")

	// ErrUnauthorized means the trading API rejected the bearer token.
	// Triggers cache invalidation and one re-authentication retry.
	ErrUnauthorized = errors.New("bearer token rejected")
)

// StepError wraps a protocol failure with the step that produced it and
// whether local credentials were affected, so the operator can tell "retry
// later" from "investigate the authority" from "re-login".
type StepError struct {
	Step                   string
	CredentialsInvalidated bool
	Err                    error
}

func (e *StepError) Error() string {
	if e.CredentialsInvalidated {
		return fmt.Sprintf("%s: %v (local session invalidated)", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Retryable reports whether err is worth retrying on the same inputs.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport)
}
