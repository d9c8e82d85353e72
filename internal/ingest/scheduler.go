package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sgbus/internal/logging"
	"sgbus/internal/storage"
)

// ErrPassInProgress is returned by Refresh when another pass holds the guard.
var ErrPassInProgress = errors.New("ingest: another ingestion pass is in progress")

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

// Scheduler refreshes stale resources. It wakes every check interval and
// re-ingests a resource once its data is older than the refresh interval,
// empty, or has never been ingested. At most one pass runs at a time
// process-wide; resources are processed one after another.
type Scheduler struct {
	repo            Repository
	jobs            []Job
	checkInterval   time.Duration
	refreshInterval time.Duration
	logger          *slog.Logger

	now       func() time.Time
	newTicker func(time.Duration) ticker

	inProgress atomic.Bool
	passes     sync.WaitGroup

	mu       sync.Mutex
	cancel   context.CancelFunc // nil while stopped
	loopDone chan struct{}
}

// NewScheduler creates a stopped Scheduler running jobs in the given order.
func NewScheduler(repo Repository, jobs []Job, checkInterval, refreshInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		repo:            repo,
		jobs:            jobs,
		checkInterval:   checkInterval,
		refreshInterval: refreshInterval,
		logger:          logger,
		now:             time.Now,
		newTicker:       func(d time.Duration) ticker { return timeTicker{time.NewTicker(d)} },
	}
}

// Start launches one pass immediately and then one per check interval.
// The first pass is launched before the timer is registered; it runs on its
// own goroutine, so a tick that arrives while it is still going is skipped
// by the in-progress guard.
//
// Calling Start on a running scheduler does nothing. Passes are detached
// from ctx cancellation; cancelling ctx stops future passes and leaves the
// scheduler stopped, as if Stop had been called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	passCtx := context.WithoutCancel(ctx)
	s.cancel = cancel

	s.launchPass(passCtx)

	t := s.newTicker(s.checkInterval)
	done := make(chan struct{})
	s.loopDone = done
	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-loopCtx.Done():
				s.mu.Lock()
				if s.loopDone == done && s.cancel != nil {
					s.cancel = nil
					s.logger.Info("ingestion scheduler stopped", "reason", context.Cause(loopCtx))
				}
				s.mu.Unlock()
				cancel()
				return
			case <-t.C():
				s.launchPass(passCtx)
			}
		}
	}()

	s.logger.Info("ingestion scheduler started",
		"check_interval", s.checkInterval,
		"refresh_interval", s.refreshInterval,
	)
}

// Stop cancels the recurring timer. A pass already running is left to
// finish; use Wait to block on it. Stopping a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	done := s.loopDone
	s.mu.Unlock()

	<-done
	s.logger.Info("ingestion scheduler stopped")
}

// Running reports whether the recurring timer is registered.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// InProgress reports whether a pass currently holds the guard.
func (s *Scheduler) InProgress() bool {
	return s.inProgress.Load()
}

// Wait blocks until every pass launched by Start or the timer has returned.
// Call it after Stop.
func (s *Scheduler) Wait() {
	s.passes.Wait()
}

func (s *Scheduler) launchPass(ctx context.Context) {
	s.passes.Add(1)
	go func() {
		defer s.passes.Done()
		s.RunPass(ctx)
	}()
}

// RunPass checks every resource and re-ingests the stale ones. It returns
// false without doing anything when another pass is in progress.
func (s *Scheduler) RunPass(ctx context.Context) bool {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.logger.Info("ingestion pass already in progress, skipping")
		return false
	}
	defer s.inProgress.Store(false)

	logger := s.logger.With("pass_id", uuid.NewString())
	start := time.Now()
	logger.Info("ingestion pass started")

	refreshed, failed := 0, 0
	for _, job := range s.jobs {
		stale, reason := s.isStale(ctx, logger, job.Resource)
		if !stale {
			logger.Debug("resource fresh, skipping", "resource", job.Resource)
			continue
		}
		logger.Info("resource stale, refreshing", "resource", job.Resource, "reason", reason)
		if err := s.runJob(ctx, logger, job); err != nil {
			failed++
			continue
		}
		refreshed++
	}

	logger.Info("ingestion pass finished",
		"refreshed", refreshed,
		"failed", failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return true
}

// Refresh ingests the named resources (all when none are given) regardless
// of staleness, under the same guard as RunPass. Failures of individual
// resources are joined into the returned error.
func (s *Scheduler) Refresh(ctx context.Context, resources ...storage.Resource) error {
	want := make(map[storage.Resource]bool, len(resources))
	for _, r := range resources {
		if !s.hasJob(r) {
			return fmt.Errorf("ingest: unknown resource %q", r)
		}
		want[r] = true
	}

	if !s.inProgress.CompareAndSwap(false, true) {
		return ErrPassInProgress
	}
	defer s.inProgress.Store(false)

	logger := s.logger.With("pass_id", uuid.NewString())
	var errs []error
	for _, job := range s.jobs {
		if len(want) > 0 && !want[job.Resource] {
			continue
		}
		if err := s.runJob(ctx, logger, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) hasJob(res storage.Resource) bool {
	for _, j := range s.jobs {
		if j.Resource == res {
			return true
		}
	}
	return false
}

// runJob is the error boundary of a pass: every failure ends up in the
// status table and is returned for counting only.
func (s *Scheduler) runJob(ctx context.Context, logger *slog.Logger, job Job) error {
	res := job.Resource
	// status writes must land even if ctx is cancelled mid-run
	statusCtx := context.WithoutCancel(ctx)

	if err := s.repo.MarkRunning(statusCtx, res); err != nil {
		logging.LogError(logger, "failed to record running status", err, slog.String("resource", string(res)))
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logging.LogError(logger, "ingestion failed", err, slog.String("resource", string(res)))
		if merr := s.repo.MarkFailed(statusCtx, res, err.Error()); merr != nil {
			logging.LogError(logger, "failed to record failure status", merr, slog.String("resource", string(res)))
		}
		return fmt.Errorf("%s: %w", res, err)
	}

	if err := s.repo.MarkSucceeded(statusCtx, res); err != nil {
		logging.LogError(logger, "failed to record success status", err, slog.String("resource", string(res)))
	}
	logger.Info("ingestion succeeded",
		"resource", res,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// isStale reports whether res needs refreshing and why. Read errors count
// as stale so a broken store is surfaced by the ingestion attempt.
func (s *Scheduler) isStale(ctx context.Context, logger *slog.Logger, res storage.Resource) (bool, string) {
	n, err := s.repo.Count(ctx, res)
	if err != nil {
		logging.LogError(logger, "staleness check failed", err, slog.String("resource", string(res)))
		return true, "count failed"
	}
	if n == 0 {
		return true, "no rows stored"
	}

	last, ok, err := s.repo.LastUpdated(ctx, res)
	if err != nil {
		logging.LogError(logger, "staleness check failed", err, slog.String("resource", string(res)))
		return true, "last updated unreadable"
	}
	if !ok {
		return true, "never updated"
	}
	if s.now().Sub(last) > s.refreshInterval {
		return true, "older than refresh interval"
	}
	return false, ""
}

// Snapshot is a point-in-time view of one resource for status reporting.
type Snapshot struct {
	storage.ResourceStatus
	Rows        int        `json:"rows"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Stale       bool       `json:"stale"`
}

// Statuses returns a snapshot of every resource in ingestion order.
func (s *Scheduler) Statuses(ctx context.Context) ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(s.jobs))
	for _, job := range s.jobs {
		st, err := s.repo.Status(ctx, job.Resource)
		if err != nil {
			return nil, err
		}
		snap := Snapshot{ResourceStatus: st}
		if snap.Rows, err = s.repo.Count(ctx, job.Resource); err != nil {
			return nil, err
		}
		last, ok, err := s.repo.LastUpdated(ctx, job.Resource)
		if err != nil {
			return nil, err
		}
		if ok {
			snap.LastUpdated = &last
		}
		snap.Stale = snap.Rows == 0 || !ok || s.now().Sub(last) > s.refreshInterval
		out = append(out, snap)
	}
	return out, nil
}
