package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/listsearch/config"
)

func fastConfig(retries int) BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
		MaxRetries:      retries,
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	})
	assert.Equal(t, 100*time.Millisecond, b(0))
	assert.Equal(t, 100*time.Millisecond, b(1))
	assert.Equal(t, 200*time.Millisecond, b(2))
	assert.Equal(t, 400*time.Millisecond, b(3))
	assert.Equal(t, time.Second, b(10), "capped at max interval")
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	b := ExponentialBackoff(BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Jitter:          true,
	})
	for i := 0; i < 20; i++ {
		d := b(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 200*time.Millisecond)
	}
}

func TestWithRetry_EventualSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastConfig(5))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_Exhausted(t *testing.T) {
	sentinel := errors.New("still down")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return sentinel
	}, fastConfig(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestWithRetry_Stop(t *testing.T) {
	sentinel := errors.New("not found")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return Stop(sentinel)
	}, fastConfig(5))
	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsStopError(Stop(sentinel)))
	assert.False(t, IsStopError(sentinel))
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialInterval = time.Hour
	cfg.MaxInterval = time.Hour

	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return errors.New("fail")
	}, cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFromConfig(t *testing.T) {
	b, err := FromConfig(config.RetryConfig{
		InitialInterval: "250ms",
		MaxInterval:     "10s",
		Multiplier:      3,
		MaxRetries:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, b.InitialInterval)
	assert.Equal(t, 10*time.Second, b.MaxInterval)
	assert.Equal(t, 3.0, b.Multiplier)
	assert.Equal(t, 1, b.MaxRetries)

	_, err = FromConfig(config.RetryConfig{InitialInterval: "soon"})
	assert.Error(t, err)
}
