package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	out := Do(context.Background(), zerolog.Nop(), Policy{MaxAttempts: 5}, "test",
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errBoom
			}
			return "ok", nil
		})

	require.True(t, out.OK())
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustionIsSwallowed(t *testing.T) {
	calls := 0
	out := Do(context.Background(), zerolog.Nop(), Policy{MaxAttempts: 5, Delay: time.Millisecond}, "test",
		func(context.Context) ([]int, error) {
			calls++
			return nil, errBoom
		})

	assert.False(t, out.OK())
	assert.ErrorIs(t, out.Err, errBoom)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, out.Attempts)
	assert.Empty(t, out.Value)
}

func TestDo_ZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	Do(context.Background(), zerolog.Nop(), Policy{}, "test", func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	out := Do(ctx, zerolog.Nop(), Policy{MaxAttempts: 5, Delay: time.Hour}, "test",
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, errBoom
		})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestPolicyWait(t *testing.T) {
	p := Policy{Delay: time.Second}
	assert.Equal(t, time.Second, p.Wait(3))

	p.Backoff = BackoffLinear
	assert.Equal(t, 3*time.Second, p.Wait(3))

	p.Backoff = BackoffExponential
	assert.Equal(t, 4*time.Second, p.Wait(3))
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 5*time.Second, p.Delay)
	assert.Equal(t, BackoffFixed, p.Backoff)
}
