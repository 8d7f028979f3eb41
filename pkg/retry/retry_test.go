package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "ttscraper/pkg/errors"
)

func TestDoubling(t *testing.T) {
	backoff := Doubling(100*time.Millisecond, time.Second, 0)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{40, 1 * time.Second},
	}

	for _, test := range tests {
		if delay := backoff(test.attempt); delay != test.expected {
			t.Errorf("Attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestDoublingJitterStaysInBand(t *testing.T) {
	backoff := Doubling(100*time.Millisecond, time.Second, 0.3)
	for i := 0; i < 20; i++ {
		delay := backoff(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func TestDoublingWithZeroBase(t *testing.T) {
	assert.Zero(t, Doubling(0, 0, 0.1)(3))
}

func TestConstant(t *testing.T) {
	b := Constant(time.Second)
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, time.Second, b(9))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	var retried []int

	cfg := &Config{
		MaxAttempts: 5,
		Backoff: func(attempt int) time.Duration {
			retried = append(retried, attempt)
			return time.Millisecond
		},
		RetryIf: func(err error) bool { return true },
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	cause := errors.New("persistent error")

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return cause
	}, &Config{MaxAttempts: 3, Backoff: Constant(time.Millisecond)})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, attempts)
}

func TestDoNonRetryableError(t *testing.T) {
	attempts := 0
	authError := &errs.Error{Type: errs.ErrorTypeAuth, Message: "forbidden", Code: 403}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return authError
	}, &Config{MaxAttempts: 5, Backoff: Constant(time.Millisecond), RetryIf: DefaultRetryIf})

	assert.Equal(t, authError, err)
	assert.Equal(t, 1, attempts)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, &Config{MaxAttempts: 10, Backoff: Constant(50 * time.Millisecond), RetryIf: func(error) bool { return true }})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", &errs.Error{Type: errs.ErrorTypeNetwork, Message: "reset"}
		}
		return "203.0.113.7", nil
	}, &Config{MaxAttempts: 3, Backoff: Constant(time.Millisecond)})

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", result)
	assert.Equal(t, 2, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(&errs.Error{Type: errs.ErrorTypeParsing}))
	assert.True(t, DefaultRetryIf(&errs.Error{Type: errs.ErrorTypeRateLimit}))
	assert.True(t, DefaultRetryIf(errors.New("unclassified")))
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, Wait(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
