package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openlancer/escrowd/pkg/retry"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection reset")

func transientOnly(err error) bool { return errors.Is(err, errTransient) }

func TestPolicy(t *testing.T) {
	testDelaySequence(t)
	testRetriesTransient(t)
	testDoesNotRetryPermanent(t)
	testExhaustsAttempts(t)
	testContextCancel(t)
}

func testDelaySequence(t *testing.T) {
	t.Run("delay sequence", func(t *testing.T) {
		p := retry.NewPolicy(
			retry.WithDelays(time.Second, 30*time.Second),
			retry.WithBackoffMultiplier(2),
		)
		require.Equal(t, time.Second, p.Delay(0))
		require.Equal(t, 2*time.Second, p.Delay(1))
		require.Equal(t, 4*time.Second, p.Delay(2))
		require.Equal(t, 8*time.Second, p.Delay(3))
		// capped at max delay
		require.Equal(t, 30*time.Second, p.Delay(5))
		require.Equal(t, 30*time.Second, p.Delay(20))
	})
}

func testRetriesTransient(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		p := retry.NewPolicy(
			retry.WithMaxRetries(3),
			retry.WithDelays(time.Millisecond, 5*time.Millisecond),
			retry.WithRetryable(transientOnly),
		)
		calls := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})
}

func testDoesNotRetryPermanent(t *testing.T) {
	t.Run("does not retry permanent errors", func(t *testing.T) {
		p := retry.NewPolicy(
			retry.WithDelays(time.Millisecond, 5*time.Millisecond),
			retry.WithRetryable(transientOnly),
		)
		permanent := errors.New("validation failed")
		calls := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return permanent
		})
		require.ErrorIs(t, err, permanent)
		require.Equal(t, 1, calls)
	})
}

func testExhaustsAttempts(t *testing.T) {
	t.Run("exhausts attempts and surfaces last error", func(t *testing.T) {
		p := retry.NewPolicy(
			retry.WithMaxRetries(2),
			retry.WithDelays(time.Millisecond, 5*time.Millisecond),
			retry.WithRetryable(transientOnly),
		)
		calls := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errTransient
		})
		require.ErrorIs(t, err, errTransient)
		// initial attempt plus two retries
		require.Equal(t, 3, calls)
	})
}

func testContextCancel(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		p := retry.NewPolicy(
			retry.WithMaxRetries(10),
			retry.WithDelays(50*time.Millisecond, time.Second),
			retry.WithRetryable(transientOnly),
		)
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		err := p.Do(ctx, func(ctx context.Context) error {
			calls++
			return errTransient
		})
		require.ErrorIs(t, err, context.Canceled)
		require.LessOrEqual(t, calls, 2)
	})
}
