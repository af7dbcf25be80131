package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/tap-paypal/internal/store"
)

// Syncer runs one sync. *Engine implements it.
type Syncer interface {
	RunSync(ctx context.Context) (*SyncResult, error)
}

// Scheduler runs periodic syncs in service mode.
type Scheduler struct {
	cron   *cron.Cron
	syncer Syncer
	runs   store.RunStore
	log    *slog.Logger

	staleAfter time.Duration
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithStaleRunRecovery marks runs left "running" for longer than olderThan as
// crashed when the scheduler starts.
func WithStaleRunRecovery(runs store.RunStore, olderThan time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.runs = runs
		s.staleAfter = olderThan
	}
}

// NewScheduler creates a new Scheduler that syncs every interval.
func NewScheduler(
	syncer Syncer,
	interval time.Duration,
	log *slog.Logger,
	opts ...SchedulerOption,
) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:   c,
		syncer: syncer,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := c.AddFunc("@every "+interval.String(), s.runSync); err != nil {
		return nil, err
	}

	return s, nil
}

// Start recovers stale runs, then begins running scheduled syncs.
func (s *Scheduler) Start() {
	if s.runs != nil {
		n, err := s.runs.RecoverStaleSyncRuns(context.Background(), s.staleAfter)
		switch {
		case err != nil:
			s.log.Warn("recovering stale sync runs", "error", err)
		case n > 0:
			s.log.Info("marked stale sync runs as crashed", "count", n)
		}
	}

	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for a running sync to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// NextRun returns when the next scheduled sync fires, or the zero time if
// the scheduler is not running.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runSync() {
	ctx := context.Background()
	s.log.Info("scheduled sync starting")

	_, err := s.syncer.RunSync(ctx)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		s.log.Info("scheduled sync skipped, another sync is running")
	case err != nil:
		s.log.Error("scheduled sync failed", "error", err)
	}
}
