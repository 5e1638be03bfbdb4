// Package retry provides exponential-backoff policies for reconnect loops
// and startup connections.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ExponentialBackoff returns a policy without an elapsed-time cap; callers
// bound it with a context when the loop should be interruptible.
func ExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.MaxElapsedTime = 0
	return exp
}

// Forever retries fn until it succeeds or ctx is cancelled, calling notify
// before each wait. Used by the external bridge, which never gives up on
// reconnecting while enabled.
func Forever(b backoff.BackOff, fn func() error, notify func(err error, next time.Duration)) error {
	return backoff.RetryNotify(fn, b, notify)
}
