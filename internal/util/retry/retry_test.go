package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithExponentialBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		failures     int
		fatal        bool
		maxRetries   int
		wantErr      bool
		wantAttempts int
	}{
		{name: "succeeds first time", failures: 0, maxRetries: 3, wantAttempts: 1},
		{name: "succeeds after retries", failures: 2, maxRetries: 3, wantAttempts: 3},
		{name: "exhausts retries", failures: 10, maxRetries: 2, wantErr: true, wantAttempts: 3},
		{name: "fatal stops immediately", failures: 10, fatal: true, maxRetries: 3, wantErr: true, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			attempts := 0
			op := func() error {
				attempts++
				if attempts <= tt.failures {
					err := errors.New("transient")
					if tt.fatal {
						return Fatal(err)
					}
					return err
				}
				return nil
			}

			err := WithExponentialBackoff(context.Background(), op,
				WithMaxRetries(tt.maxRetries),
				WithInitialDelay(time.Millisecond),
				WithMaxDelay(2*time.Millisecond),
				WithMultiplier(2))

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.fatal {
				assert.True(t, IsFatal(err))
			}
		})
	}
}

func TestWithExponentialBackoff_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := WithExponentialBackoff(ctx, func() error {
		attempts++
		return errors.New("error")
	}, WithInitialDelay(10*time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestFatal(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Fatal(nil))

	sentinel := errors.New("sentinel")
	wrapped := fmt.Errorf("context: %w", Fatal(sentinel))
	assert.True(t, IsFatal(wrapped))
	assert.ErrorIs(t, wrapped, sentinel)
	assert.False(t, IsFatal(sentinel))
	assert.Equal(t, sentinel, errors.Unwrap(Fatal(sentinel)))
}

func TestPoll(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	tests := []struct {
		name      string
		doneAt    int
		failAt    int
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{name: "already satisfied", doneAt: 1, attempts: 5, wantCalls: 1},
		{name: "satisfied on third check", doneAt: 3, attempts: 5, wantCalls: 3},
		{name: "never satisfied", doneAt: 100, attempts: 4, wantCalls: 4, wantErr: ErrExhausted},
		{name: "condition error short-circuits", doneAt: 100, failAt: 2, attempts: 5, wantCalls: 2, wantErr: boom},
		{name: "zero attempts still checks once", doneAt: 100, attempts: 0, wantCalls: 1, wantErr: ErrExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			err := Poll(context.Background(), time.Millisecond, tt.attempts, func(context.Context) (bool, error) {
				calls++
				if tt.failAt > 0 && calls == tt.failAt {
					return false, boom
				}
				return calls >= tt.doneAt, nil
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestPoll_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancelled before first check", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := Poll(ctx, time.Millisecond, 3, func(context.Context) (bool, error) {
			calls++
			return true, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := Poll(ctx, time.Hour, 3, func(context.Context) (bool, error) {
			calls++
			cancel()
			return false, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
