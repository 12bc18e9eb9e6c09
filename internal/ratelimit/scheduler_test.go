package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduler_FirstWaitIsImmediate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, 2*time.Second)

	require.NoError(t, s.Wait(context.Background()))
}

func TestScheduler_SecondWaitBlocksForInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, 2*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Wait(ctx))

	done := make(chan error, 1)
	go func() { done <- s.Wait(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	select {
	case <-done:
		t.Fatal("second wait returned before the interval elapsed")
	default:
	}

	clock.Advance(2 * time.Second)
	require.NoError(t, <-done)
}

func TestScheduler_ElapsedIntervalDoesNotBlock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock, 5*time.Second)

	require.NoError(t, s.Wait(context.Background()))
	clock.Advance(6 * time.Second)
	require.NoError(t, s.Wait(context.Background()))
}

func TestScheduler_CancelledWait(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock, time.Minute)
	require.NoError(t, s.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Wait(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_ZeroIntervalNeverWaits(t *testing.T) {
	s := NewScheduler(clockwork.NewFakeClock(), 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Wait(context.Background()))
	}
	assert.Equal(t, time.Duration(0), s.Interval())
}

func TestSleep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Sleep(ctx, clock, 15*time.Second) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(15 * time.Second)
	require.NoError(t, <-done)

	assert.NoError(t, Sleep(ctx, clock, 0))
}
