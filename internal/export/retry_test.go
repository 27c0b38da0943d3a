package export

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-atlas/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{63, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryDoSucceedsAfterThrottle(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, Logger: testLogger()}

	calls := 0
	err := policy.Do(context.Background(), "list page", func() error {
		calls++
		if calls < 2 {
			return domain.ErrThrottling("rate exceeded")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryDoPermanentErrorFailsFast(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, Logger: testLogger()}

	calls := 0
	err := policy.Do(context.Background(), "list page", func() error {
		calls++
		return domain.ErrAccessDenied("no access")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")

	var denied *domain.AccessDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Logger: testLogger()}

	calls := 0
	err := policy.Do(context.Background(), "list page", func() error {
		calls++
		return domain.ErrServiceUnavailable("upstream down")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	var unavailable *domain.ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestRetryDoContextCancelledDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, Logger: testLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, "list page", func() error {
		calls++
		return domain.ErrThrottling("rate exceeded")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
