package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitEnforcesMinimumInterval(t *testing.T) {
	t.Parallel()
	interval := 50 * time.Millisecond
	l := New("commons", Config{MinInterval: interval})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	var stamps []time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
		stamps = append(stamps, time.Now())
	}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		require.GreaterOrEqual(t, gap, interval-5*time.Millisecond,
			"consecutive calls must be spaced by at least the configured interval")
	}
}

func TestWaitHonorsDailyQuota(t *testing.T) {
	t.Parallel()
	l := New("cse", Config{DailyQuota: 2})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	require.ErrorIs(t, l.Wait(ctx), ErrQuotaExhausted)
}

func TestQuotaResetsNextDay(t *testing.T) {
	t.Parallel()
	l := New("cse", Config{DailyQuota: 1})
	now := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }

	require.NoError(t, l.Wait(context.Background()))
	require.ErrorIs(t, l.Wait(context.Background()), ErrQuotaExhausted)

	now = now.Add(2 * time.Hour) // past midnight UTC
	require.NoError(t, l.Wait(context.Background()))
}

func TestCooldownPausesThenResumes(t *testing.T) {
	t.Parallel()
	l := New("cse", Config{})
	l.Cooldown(60 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond,
		"wait must block for the cool-down window")

	// Window elapsed: subsequent waits are immediate again.
	start = time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestCooldownWaitAbortsOnCancel(t *testing.T) {
	t.Parallel()
	l := New("cse", Config{})
	l.Cooldown(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
