package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries        = 3
	DefaultInitialDelay      = time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultBackoffMultiplier = 2
)

// Policy controls how a transient failure is retried. The zero value is not
// usable, construct with NewPolicy.
type Policy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// Retryable classifies errors; only errors it accepts are retried.
	// Nil means retry nothing.
	Retryable func(error) bool

	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Policy.
type Option func(*Policy)

func WithMaxRetries(n int) Option {
	return func(p *Policy) { p.MaxRetries = n }
}

func WithDelays(initial, max time.Duration) Option {
	return func(p *Policy) {
		p.InitialDelay = initial
		p.MaxDelay = max
	}
}

func WithBackoffMultiplier(m float64) Option {
	return func(p *Policy) { p.BackoffMultiplier = m }
}

// WithRetryable sets the error classifier deciding which failures are
// transient.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) { p.Retryable = fn }
}

func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		MaxDelay:          DefaultMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		sleep:             sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Delay returns the backoff before the given retry attempt, starting at 0:
// min(initialDelay * multiplier^attempt, maxDelay).
func (p *Policy) Delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= p.BackoffMultiplier
		if time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn, retrying transient failures with exponential backoff until it
// succeeds, a non-retryable error occurs, the attempts are exhausted or the
// context is done.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			return err
		}
		if serr := p.sleep(ctx, p.Delay(attempt)); serr != nil {
			return serr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
