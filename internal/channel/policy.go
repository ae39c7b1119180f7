package channel

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultMaxReconnectAttempts is the number of consecutive failures after
// which the channel stops retrying.
const DefaultMaxReconnectAttempts = 10

// Policy is the reconnection policy: a capped exponential backoff between
// attempts and a ceiling on consecutive failures.
type Policy struct {
	// MaxReconnectAttempts is the ceiling. The channel closes itself once the
	// failure counter exceeds it.
	MaxReconnectAttempts int

	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultPolicy returns the production policy: 1s doubling up to 30s with
// 20% jitter, ten attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		InitialInterval:      time.Second,
		MaxInterval:          30 * time.Second,
		Multiplier:           2,
		RandomizationFactor:  0.2,
	}
}

// NewBackOff returns a fresh backoff schedule for this policy.
func (p Policy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.RandomizationFactor
	b.Reset()
	return b
}

// nextDelay returns the next wait, falling back to the cap if the schedule
// reports Stop.
func (p Policy) nextDelay(b backoff.BackOff) time.Duration {
	d := b.NextBackOff()
	if d == backoff.Stop {
		return p.MaxInterval
	}
	return d
}
