package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) RunSync(context.Context) (*SyncResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &SyncResult{}, nil
}

func TestNewScheduler_RegistersCronEntry(t *testing.T) {
	t.Parallel()

	sched, err := NewScheduler(&countingSyncer{}, 15*time.Minute, quietLogger())
	require.NoError(t, err)

	assert.Len(t, sched.Entries(), 1)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	sched, err := NewScheduler(&countingSyncer{}, time.Hour, quietLogger())
	require.NoError(t, err)

	sched.Start()
	ctx := sched.Stop()
	<-ctx.Done()
}

func TestScheduler_NextRun(t *testing.T) {
	t.Parallel()

	sched, err := NewScheduler(&countingSyncer{}, time.Hour, quietLogger())
	require.NoError(t, err)

	before := time.Now()
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	next := sched.NextRun()
	assert.True(t, next.After(before), "next run should be in the future")
	assert.WithinDuration(t, before.Add(time.Hour), next, 5*time.Second)
}

func TestScheduler_RecoversStaleRuns(t *testing.T) {
	t.Parallel()

	runs := newMemRuns()
	sched, err := NewScheduler(&countingSyncer{}, time.Hour, quietLogger(),
		WithStaleRunRecovery(runs, 2*time.Hour),
	)
	require.NoError(t, err)

	sched.Start()
	<-sched.Stop().Done()

	assert.Equal(t, 1, runs.recovered)
}

func TestScheduler_RunSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "in progress", err: ErrSyncInProgress},
		{name: "failure", err: errors.New("oauth token request failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			syncer := &countingSyncer{err: tt.err}
			sched, err := NewScheduler(syncer, time.Hour, quietLogger())
			require.NoError(t, err)

			sched.runSync()
			assert.Equal(t, int32(1), syncer.calls.Load())
		})
	}
}

func TestScheduler_DrivesEngine(t *testing.T) {
	t.Parallel()

	d := newDeps()
	eng := d.engine()

	sched, err := NewScheduler(eng, time.Hour, quietLogger())
	require.NoError(t, err)

	sched.runSync()

	runs, err := d.runs.ListSyncRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "succeeded", runs[0].Status)
}
