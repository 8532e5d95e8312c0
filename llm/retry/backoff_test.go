package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/formflow/formflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		ShouldRetry:  func(error) bool { return true },
	}
}

func TestBackoffRetryer_Success(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount, "应该只调用一次")
}

func TestBackoffRetryer_RetryAndSuccess(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	got, err := DoWithResult(context.Background(), retryer, func(context.Context) (int, error) {
		callCount++
		if callCount < 3 {
			return 0, errors.New("temporary error")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, callCount, "应该调用三次")
}

func TestBackoffRetryer_MaxRetriesExceeded(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(2), zap.NewNop())

	callCount := 0
	testErr := errors.New("persistent error")
	err := retryer.Do(context.Background(), func(context.Context) error {
		callCount++
		return testErr
	})

	require.Error(t, err)
	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, testErr)
	assert.Equal(t, 3, callCount, "应该调用三次（初始+2次重试）")
}

func TestBackoffRetryer_ZeroRetriesReturnsErrorUnchanged(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(0), zap.NewNop())
	testErr := errors.New("boom")
	err := retryer.Do(context.Background(), func(context.Context) error { return testErr })
	assert.Same(t, testErr, err)
}

func TestBackoffRetryer_ContextCanceled(t *testing.T) {
	policy := fastPolicy(5)
	policy.InitialDelay = 200 * time.Millisecond
	policy.MaxDelay = time.Second
	retryer := NewBackoffRetryer(policy, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	callCount := 0
	testErr := errors.New("error")
	err := retryer.Do(ctx, func(context.Context) error {
		callCount++
		return testErr
	})

	assert.ErrorIs(t, err, testErr)
	assert.Equal(t, 1, callCount)
}

func TestBackoffRetryer_DefaultShouldRetryUsesTypes(t *testing.T) {
	policy := fastPolicy(3)
	policy.ShouldRetry = nil
	retryer := NewBackoffRetryer(policy, nil)

	t.Run("retryable error", func(t *testing.T) {
		callCount := 0
		err := retryer.Do(context.Background(), func(context.Context) error {
			callCount++
			if callCount < 3 {
				return types.NewError(types.ErrProviderUnavailable, "down").WithRetryable(true)
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, callCount)
	})

	t.Run("non-retryable error", func(t *testing.T) {
		callCount := 0
		err := retryer.Do(context.Background(), func(context.Context) error {
			callCount++
			return types.NewError(types.ErrInvalidRequest, "bad")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, callCount, "不应该重试")
	})
}

func TestBackoffRetryer_DelayCalculation(t *testing.T) {
	retryer := NewBackoffRetryer(&RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}, zap.NewNop())

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond}, // 初始延迟
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second}, // 达到最大延迟
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, retryer.calculateDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoffRetryer_JitterBounds(t *testing.T) {
	retryer := NewBackoffRetryer(&RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}, nil)

	for i := 0; i < 100; i++ {
		d := retryer.calculateDelay(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

func TestBackoffRetryer_OnRetryCallback(t *testing.T) {
	var attempts []int
	policy := fastPolicy(2)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
		assert.Greater(t, delay, time.Duration(0))
	}
	retryer := NewBackoffRetryer(policy, nil)

	callCount := 0
	_ = retryer.Do(context.Background(), func(context.Context) error {
		callCount++
		if callCount < 3 {
			return errors.New("test error")
		}
		return nil
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestNewBackoffRetryer_Normalizes(t *testing.T) {
	r := NewBackoffRetryer(&RetryPolicy{MaxRetries: -1, Multiplier: 0.5}, nil)
	p := r.Policy()
	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.Greater(t, p.InitialDelay, time.Duration(0))
	assert.GreaterOrEqual(t, p.MaxDelay, p.InitialDelay)
	assert.NotNil(t, p.ShouldRetry)

	d := NewBackoffRetryer(nil, nil).Policy()
	assert.Equal(t, 2, d.MaxRetries)
}
