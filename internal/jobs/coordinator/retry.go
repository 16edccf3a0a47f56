package coordinator

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds retries of transient failures. MaxRetries counts retries,
// so a job runs at most MaxRetries+1 attempts.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
	Jitter     float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Base: time.Second, Cap: 30 * time.Second, Jitter: 0.2}
}

// Delay is the wait before the retry that follows attempt n (1-based):
// roughly Base * 2^(n-1), capped, with jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	maxInterval := p.Cap
	if maxInterval <= 0 {
		maxInterval = p.Base << 6
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Base,
		RandomizationFactor: p.Jitter,
		Multiplier:          2,
		MaxInterval:         maxInterval,
	}
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// ShouldRetry reports whether a transient failure of attempt n gets another try.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt <= p.MaxRetries
}
