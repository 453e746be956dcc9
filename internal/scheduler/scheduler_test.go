package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestEffectiveInterval(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, MinInterval},
		{time.Second, MinInterval},
		{59 * time.Second, MinInterval},
		{60 * time.Second, 60 * time.Second},
		{15 * time.Minute, 15 * time.Minute},
	}

	for _, tt := range tests {
		if got := EffectiveInterval(tt.in); got != tt.want {
			t.Errorf("EffectiveInterval(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScheduler_RegisterIntervalTask(t *testing.T) {
	s := newTestScheduler(t)

	cfg := TaskConfig{
		ID:       "link",
		Name:     "Link",
		Interval: 5 * time.Second,
		Func:     func(context.Context) error { return nil },
	}
	require.NoError(t, s.RegisterIntervalTask(cfg))

	info, err := s.GetTask("link")
	require.NoError(t, err)
	assert.Equal(t, "1m0s", info.Interval)
	assert.Empty(t, info.Cron)

	err = s.RegisterIntervalTask(cfg)
	assert.ErrorIs(t, err, ErrTaskRegistered)
}

func TestScheduler_RegisterRequiresFunc(t *testing.T) {
	s := newTestScheduler(t)

	assert.Error(t, s.RegisterIntervalTask(TaskConfig{ID: "x"}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "y", Func: func(context.Context) error { return nil }}))
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(t)

	var calls atomic.Int32
	require.NoError(t, s.RegisterIntervalTask(TaskConfig{
		ID:   "link",
		Name: "Link",
		Func: func(context.Context) error {
			calls.Add(1)
			return errors.New("boom")
		},
	}))
	require.NoError(t, s.Start())

	require.NoError(t, s.RunNow("link"))
	waitFor(t, func() bool {
		info, _ := s.GetTask("link")
		return info.Runs == 1 && !info.Running
	})

	info, err := s.GetTask("link")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "boom", info.LastError)
	assert.NotNil(t, info.LastRun)

	assert.ErrorIs(t, s.RunNow("missing"), ErrTaskNotFound)
}

func TestScheduler_RunNowWhileRunning(t *testing.T) {
	s := newTestScheduler(t)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.RegisterIntervalTask(TaskConfig{
		ID: "slow",
		Func: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))

	require.NoError(t, s.RunNow("slow"))
	<-started
	assert.ErrorIs(t, s.RunNow("slow"), ErrTaskRunning)
	close(release)

	waitFor(t, func() bool {
		info, _ := s.GetTask("slow")
		return !info.Running
	})
}

func TestScheduler_PanicRecovered(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.RegisterIntervalTask(TaskConfig{
		ID:   "panics",
		Func: func(context.Context) error { panic("kaboom") },
	}))

	require.NoError(t, s.RunNow("panics"))
	waitFor(t, func() bool {
		info, _ := s.GetTask("panics")
		return info.Runs == 1
	})

	info, _ := s.GetTask("panics")
	assert.Contains(t, info.LastError, "kaboom")
	assert.False(t, info.Running)

	// The task is still schedulable after a panic.
	require.NoError(t, s.RunNow("panics"))
	waitFor(t, func() bool {
		info, _ := s.GetTask("panics")
		return info.Runs == 2
	})
}

func TestScheduler_RunOnStart(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{}, 1)
	require.NoError(t, s.RegisterIntervalTask(TaskConfig{
		ID:         "startup",
		RunOnStart: true,
		Func: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))
	require.NoError(t, s.RegisterIntervalTask(TaskConfig{
		ID:   "idle",
		Func: func(context.Context) error { t.Error("idle task should not run"); return nil },
	}))

	require.NoError(t, s.Start())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnStart task did not run")
	}
}

func TestScheduler_StopCancelsContext(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)

	done := make(chan error, 1)
	require.NoError(t, s.RegisterIntervalTask(TaskConfig{
		ID:         "waits",
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			done <- ctx.Err()
			return ctx.Err()
		},
	}))
	require.NoError(t, s.Start())

	waitFor(t, func() bool {
		info, _ := s.GetTask("waits")
		return info.Running
	})
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_ListTasksSorted(t *testing.T) {
	s := newTestScheduler(t)

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.RegisterIntervalTask(TaskConfig{ID: "b", Func: noop}))
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "a", Cron: "0 0 * * *", Func: noop}))

	tasks := s.ListTasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "0 0 * * *", tasks[0].Cron)
	assert.Equal(t, "b", tasks[1].ID)

	_, err := s.GetTask("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
