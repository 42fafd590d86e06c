package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNextRun(t *testing.T) {
	utc := time.UTC
	cases := []struct {
		from time.Time
		want time.Time
	}{
		{time.Date(2024, 1, 10, 1, 59, 59, 0, utc), time.Date(2024, 1, 10, 2, 0, 0, 0, utc)},
		{time.Date(2024, 1, 10, 2, 0, 0, 0, utc), time.Date(2024, 1, 11, 2, 0, 0, 0, utc)},
		{time.Date(2024, 1, 10, 23, 0, 0, 0, utc), time.Date(2024, 1, 11, 2, 0, 0, 0, utc)},
		{time.Date(2024, 12, 31, 3, 0, 0, 0, utc), time.Date(2025, 1, 1, 2, 0, 0, 0, utc)},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NextRun(tc.from, 2, 0, utc), "from %s", tc.from)
	}

	// hours are evaluated in the scheduler's zone
	tokyo := time.FixedZone("JST", 9*3600)
	got := NextRun(time.Date(2024, 1, 10, 16, 0, 0, 0, utc), 2, 0, tokyo)
	require.Equal(t, time.Date(2024, 1, 10, 17, 0, 0, 0, utc), got.UTC())
}

func TestSchedulerHoursFollowItsZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	s := NewScheduler(tokyo, zaptest.NewLogger(t))
	// 18:00 UTC is already 03:00 on the next JST day
	s.now = func() time.Time { return time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC) }
	require.NoError(t, s.AddDaily("streak-reset", 2, 0, func(ctx context.Context) error { return nil }))

	status := s.Status()
	require.Len(t, status, 1)
	next := status[0].NextRun.In(tokyo)
	require.Equal(t, 2, next.Hour())
	require.Equal(t, time.Date(2024, 1, 12, 2, 0, 0, 0, tokyo), next)
}

func TestSchedulerRunNowTracksStatus(t *testing.T) {
	s := NewScheduler(time.UTC, zaptest.NewLogger(t))
	var calls int32
	require.NoError(t, s.AddDaily("streak-reset", 2, 0, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, s.AddDaily("stats-refresh", 3, 0, func(ctx context.Context) error {
		return errors.New("redis down")
	}))
	require.Error(t, s.AddDaily("streak-reset", 4, 0, nil))
	require.Error(t, s.AddDaily("bad", 24, 0, nil))

	require.NoError(t, s.RunNow(context.Background(), "streak-reset"))
	require.EqualError(t, s.RunNow(context.Background(), "stats-refresh"), "redis down")
	require.Error(t, s.RunNow(context.Background(), "missing"))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	status := s.Status()
	require.Len(t, status, 2)
	require.Equal(t, "stats-refresh", status[0].Name)
	require.Equal(t, "redis down", status[0].LastError)
	require.Equal(t, "streak-reset", status[1].Name)
	require.Equal(t, 1, status[1].Runs)
	require.NotEmpty(t, status[1].LastRunID)
	require.NotNil(t, status[1].LastRun)
	require.False(t, status[1].NextRun.IsZero())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s := NewScheduler(nil, nil)
	require.NoError(t, s.AddDaily("boom", 0, 0, func(context.Context) error { panic("bad job") }))
	err := s.RunNow(context.Background(), "boom")
	require.ErrorContains(t, err, "bad job")
	require.False(t, s.Status()[0].Running)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	s := NewScheduler(time.UTC, zaptest.NewLogger(t))
	require.NoError(t, s.AddDaily("noop", 2, 0, func(context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
