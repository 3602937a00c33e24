package syncer

import "time"

// Policy bounds how often a failing entry is retried.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultPolicy returns the retry policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BackoffBase: 2 * time.Second, BackoffMax: 5 * time.Minute}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	if p.BackoffMax < p.BackoffBase {
		p.BackoffMax = p.BackoffBase
	}
	return p
}

// Backoff returns the delay before the next try after attempts failures:
// Base doubled for every failure after the first, capped at Max.
func (p Policy) Backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	delay := p.BackoffBase
	for i := 1; i < attempts; i++ {
		if delay >= p.BackoffMax/2 {
			return p.BackoffMax
		}
		delay *= 2
	}
	if delay > p.BackoffMax {
		return p.BackoffMax
	}
	return delay
}
