package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testConfig(3), func() error {
		attempts++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	base := errors.New("bad schema url")
	err := Do(context.Background(), testConfig(5), func() error {
		attempts++
		return NonRetryable(base)
	})

	require.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialDelay: 200 * time.Millisecond, MaxDelay: time.Second}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, cfg, func() error { return errors.New("fail") })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_RejectsInvalidConfig(t *testing.T) {
	err := Do(context.Background(), Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, func() error {
		return nil
	})
	assert.Error(t, err)
}

func TestSchedule_MonotonicThenCapped(t *testing.T) {
	s := DefaultSchedule()
	s.MaxJitter = 0

	expected := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second,
		8 * time.Second, 16 * time.Second, 30 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, s.Delay(i), "attempt %d", i)
	}

	for i := 6; i < 20; i++ {
		assert.Equal(t, 30*time.Second, s.Delay(i), "attempt %d must stay capped", i)
	}
}

func TestSchedule_JitterBounded(t *testing.T) {
	s := DefaultSchedule()
	for i := 0; i < 200; i++ {
		d := s.Delay(2)
		assert.GreaterOrEqual(t, d, 4*time.Second)
		assert.Less(t, d, 4*time.Second+DefaultMaxJitter)
	}
}

func TestSchedule_InjectedJitter(t *testing.T) {
	s := DefaultSchedule()
	s.Jitter = func(n int64) int64 { return n - 1 }

	assert.Equal(t, time.Second+DefaultMaxJitter-1, s.Delay(0))
}

func TestSchedule_Clamp(t *testing.T) {
	s := DefaultSchedule()

	assert.Equal(t, 0, s.Clamp(-3))
	assert.Equal(t, 3, s.Clamp(3))
	assert.Equal(t, 5, s.Clamp(99))
	assert.Equal(t, 0, Schedule{}.Clamp(4))
	assert.Equal(t, time.Duration(0), Schedule{}.Base(2))
}
