package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("first success returns immediately", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(), func() error {
			calls++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient failure recovers", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(), func() error {
			calls++
			if calls < 2 {
				return errors.New("flaky")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("persistent failure exhausts attempts", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := Do(ctx, fastConfig(), func() error {
			calls++
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls) // initial try plus two retries
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cancelledCtx, cancel := context.WithCancel(ctx)
		cancel()

		err := Do(cancelledCtx, fastConfig(), func() error {
			return errors.New("never settles")
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDoWithResult(t *testing.T) {
	ctx := context.Background()

	calls := 0
	result, err := DoWithResult(ctx, fastConfig(), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestDelayIsBounded(t *testing.T) {
	cfg := fastConfig()
	cfg.Jitter = true

	for attempt := 0; attempt < 10; attempt++ {
		d := delay(cfg, attempt)
		assert.LessOrEqual(t, d, cfg.MaxDelay+cfg.MaxDelay/2)
		assert.Positive(t, d)
	}
}
