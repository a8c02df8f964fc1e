package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
		retry    bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{"storage", ErrCodeCacheFailed, CategoryStorage, SeverityError, false},
		{"upstream timeout", ErrCodeUpstreamTimeout, CategoryUpstream, SeverityWarning, true},
		{"oracle failure", ErrCodeOracleFailed, CategoryUpstream, SeverityWarning, true},
		{"malformed oracle body", ErrCodeOracleMalformed, CategoryUpstream, SeverityError, false},
		{"validation", ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
		{"corrupt index is fatal", ErrCodeIndexCorrupt, CategoryStorage, SeverityFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retry, err.Retryable)
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeUpstreamUnavailable, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeUpstreamUnavailable, GetCode(err))
}

func TestPipelineError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeQueryEmpty, "empty", nil)
	b := New(ErrCodeQueryEmpty, "different message", nil)
	c := New(ErrCodeQueryTooLong, "long", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(New(ErrCodeQueryTooLong, "too long", nil)))
	assert.False(t, IsValidation(New(ErrCodeOracleFailed, "500", nil)))
	assert.False(t, IsValidation(errors.New("plain")))
	assert.False(t, IsValidation(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeEmbeddingFailed, "down", nil)))
	assert.False(t, IsRetryable(New(ErrCodeQueryEmpty, "empty", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("attempt %d failed", attempts)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errors.New("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryConfig(), func() error {
		return errors.New("should not matter")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}

	calls := 0
	result, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("first fails")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("oracle", WithMaxFailures(3), WithResetTimeout(time.Hour))

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("fail") })
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("oracle", WithMaxFailures(1), WithResetTimeout(time.Millisecond))

	_ = cb.Execute(func() error { return errors.New("fail") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("oracle", WithMaxFailures(5))

	_ = cb.Execute(func() error { return errors.New("fail") })
	_ = cb.Execute(func() error { return errors.New("fail") })
	require.Equal(t, 2, cb.Failures())

	_ = cb.Execute(func() error { return nil })
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}
