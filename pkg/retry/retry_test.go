package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/logger"
)

func quickConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoRetriesTransport(t *testing.T) {
	calls := 0
	err := Do(context.Background(), quickConfig(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.KindTransport, 502, "bad gateway")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	for _, kind := range []errs.Kind{errs.KindUnauthorized, errs.KindNotFound, errs.KindRateLimited} {
		t.Run(string(kind), func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), quickConfig(5), func(ctx context.Context) error {
				calls++
				return errs.New(kind, 0, "nope")
			})
			assert.True(t, errs.IsKind(err, kind))
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDoReturnsLastErrorClassifiable(t *testing.T) {
	calls := 0
	var retries []int
	cfg := quickConfig(2)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) { retries = append(retries, attempt) }

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return errs.New(errs.KindTransport, 500, "boom")
	})
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, errs.ErrTransport)
	assert.Equal(t, []int{1}, retries)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := quickConfig(5)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := Do(ctx, cfg, func(ctx context.Context) error {
		return errs.New(errs.KindTransport, 0, "reset")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.True(t, errs.IsKind(err, errs.KindTransport))
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), quickConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.KindTransport, 0, "timeout")
		}
		return "page-2", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "page-2", got)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errors.New("plain")))
	assert.True(t, DefaultRetryIf(errs.New(errs.KindTransport, 0, "x")))
}

func TestExponentialBackoff(t *testing.T) {
	b := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	assert.Equal(t, time.Second, b.NextDelay(1))
	assert.Equal(t, 4*time.Second, b.NextDelay(3))
	assert.Equal(t, 5*time.Second, b.NextDelay(10))

	b.JitterFactor = 0.5
	for i := 0; i < 20; i++ {
		d := b.NextDelay(2)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}
