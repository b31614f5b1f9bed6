package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"petcare-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(max int) *RetryConfig {
	return &RetryConfig{MaxRetries: max, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(5), logger.NewNoOpLogger(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(5), logger.NewNoOpLogger(), "op", func(context.Context) error {
		calls++
		return errors.New("permission denied")
	})
	assert.ErrorContains(t, err, "permission denied")
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(2), logger.NewNoOpLogger(), "op", func(context.Context) error {
		calls++
		return errors.New("service unavailable")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := &RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}

	err := Retry(ctx, cfg, logger.NewNoOpLogger(), "op", func(context.Context) error {
		return errors.New("timeout")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, Backoff(cfg, 0))
	assert.Equal(t, 2*time.Second, Backoff(cfg, 1))
	assert.Equal(t, 4*time.Second, Backoff(cfg, 2))
	assert.Equal(t, 5*time.Second, Backoff(cfg, 3))
	assert.Equal(t, 5*time.Second, Backoff(cfg, 40))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("rpc error: code = Unavailable")))
	assert.True(t, IsRetryable(errors.New("context deadline exceeded")))
	assert.False(t, IsRetryable(errors.New("invalid credentials")))
}
