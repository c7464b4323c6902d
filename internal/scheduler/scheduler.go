// Package scheduler drives track-and-notify across every pending request in
// paginated cycles.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/container-tracker/internal/lock"
	"github.com/noah-isme/container-tracker/internal/obs"
	"github.com/noah-isme/container-tracker/internal/schedule"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

const (
	DefaultBatchSize    = 500
	DefaultConcurrency  = 10
	DefaultPageCooldown = time.Second
	DefaultItemTimeout  = 60 * time.Second
	// DefaultLockTTL bounds one cycle, both the cross-process lock and the
	// asynq task running it.
	DefaultLockTTL = 6 * time.Hour

	// CycleLockKey guards cycles across worker processes.
	CycleLockKey = "tracker:cycle"
)

// ErrCycleRunning is returned by TryRunCycle when a cycle is in progress.
var ErrCycleRunning = errors.New("scheduler: cycle already running")

// RunSummary describes one completed or aborted cycle.
type RunSummary struct {
	CycleID   string        `json:"cycle_id"`
	Pages     int           `json:"pages"`
	Processed int           `json:"processed"`
	Success   int           `json:"success"`
	Errors    int           `json:"errors"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Aborted   bool          `json:"aborted"`
	Err       error         `json:"-"`
}

type locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Scheduler pages through the pending source and dispatches every request.
// Concurrency is a hard cap on in-flight dispatches within a page.
type Scheduler struct {
	Source      schedule.PendingSource
	Dispatcher  schedule.Dispatcher
	BatchSize   int
	Concurrency int
	// PageCooldown is waited after every full page.
	PageCooldown time.Duration
	// ItemTimeout bounds each dispatch.
	ItemTimeout time.Duration
	Locker      locker
	LockTTL     time.Duration
	Logger      zerolog.Logger

	// Sleep replaces the cooldown wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time

	running atomic.Bool
}

// TryRunCycle runs a cycle unless one is already running in this process
// or, when a Locker is set, anywhere else.
func (s *Scheduler) TryRunCycle(ctx context.Context) (RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrCycleRunning
	}
	defer s.running.Store(false)

	if s.Locker == nil {
		return s.RunCycle(ctx), nil
	}
	var summary RunSummary
	err := s.Locker.TryWithLock(ctx, CycleLockKey, s.lockTTL(), func(lockCtx context.Context) error {
		summary = s.RunCycle(lockCtx)
		return nil
	})
	if errors.Is(err, lock.ErrHeld) {
		return RunSummary{}, ErrCycleRunning
	}
	return summary, err
}

// Running reports whether this process is inside a cycle.
func (s *Scheduler) Running() bool { return s.running.Load() }

// RunCycle pages from offset zero until a short page. A fetch failure or a
// panic aborts the cycle; per-item failures are counted and skipped.
func (s *Scheduler) RunCycle(ctx context.Context) (summary RunSummary) {
	now := s.now()
	summary = RunSummary{CycleID: uuid.NewString(), StartedAt: now()}
	logger := s.Logger.With().Str("cycle_id", summary.CycleID).Logger()

	ctx, span := otel.Tracer("scheduler").Start(ctx, "scheduler.RunCycle")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			summary.Aborted = true
			summary.Err = fmt.Errorf("scheduler: cycle panic: %v", r)
		}
		summary.Duration = now().Sub(summary.StartedAt)
		result := "completed"
		if summary.Aborted {
			result = "aborted"
			logger.Error().Err(summary.Err).Int("pages", summary.Pages).Int("processed", summary.Processed).Msg("cycle_aborted")
		} else {
			logger.Info().
				Int("pages", summary.Pages).
				Int("processed", summary.Processed).
				Int("success", summary.Success).
				Int("errors", summary.Errors).
				Dur("duration", summary.Duration).
				Msg("cycle_completed")
		}
		obs.IncCounter(obs.SchedulerCyclesTotal, result)
		if obs.SchedulerCycleLatency != nil {
			obs.SchedulerCycleLatency.Observe(obs.DurationMillis(summary.Duration))
		}
		span.SetAttributes(
			attribute.String("cycle_id", summary.CycleID),
			attribute.Int("processed", summary.Processed),
			attribute.Bool("aborted", summary.Aborted),
		)
	}()

	if s.Source == nil || s.Dispatcher == nil {
		summary.Aborted = true
		summary.Err = errors.New("scheduler: source and dispatcher are required")
		return summary
	}

	batch := positiveOr(s.BatchSize, DefaultBatchSize)
	logger.Info().Int("batch_size", batch).Int("concurrency", s.concurrency()).Msg("cycle_started")

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			summary.Err = err
			return summary
		}
		page, err := s.Source.Page(ctx, offset, batch)
		if err != nil {
			summary.Aborted = true
			summary.Err = fmt.Errorf("scheduler: fetch page at offset %d: %w", offset, err)
			return summary
		}
		summary.Pages++
		if len(page) == 0 {
			return summary
		}

		ok, failed := s.dispatchPage(ctx, logger, page)
		summary.Processed += len(page)
		summary.Success += ok
		summary.Errors += failed
		logger.Info().Int("offset", offset).Int("size", len(page)).Int("success", ok).Int("errors", failed).Msg("page_processed")

		if len(page) < batch {
			return summary
		}
		offset += batch
		if err := s.sleep(ctx, s.cooldown()); err != nil {
			summary.Aborted = true
			summary.Err = err
			return summary
		}
	}
}

// dispatchPage runs every request on a bounded pool and waits for all of
// them. A panicking item is counted as an error.
func (s *Scheduler) dispatchPage(ctx context.Context, logger zerolog.Logger, page []tracking.Request) (int, int) {
	var (
		success atomic.Int64
		failed  atomic.Int64
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, s.concurrency())
	itemTimeout := positiveDur(s.ItemTimeout, DefaultItemTimeout)

	for _, req := range page {
		sem <- struct{}{}
		wg.Add(1)
		go func(req tracking.Request) {
			defer func() { <-sem }()
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					obs.IncCounter(obs.SchedulerItemsTotal, "panic")
					logger.Error().Str("container_no", req.ContainerNo).Interface("panic", r).Msg("dispatch_panic")
				}
			}()

			itemCtx, cancel := context.WithTimeout(ctx, itemTimeout)
			defer cancel()
			if err := s.Dispatcher.Dispatch(itemCtx, req); err != nil {
				failed.Add(1)
				obs.IncCounter(obs.SchedulerItemsTotal, "error")
				logger.Warn().Err(err).Str("container_no", req.ContainerNo).Str("email_to", req.EmailTo).Msg("dispatch_failed")
				return
			}
			success.Add(1)
			obs.IncCounter(obs.SchedulerItemsTotal, "success")
		}(req)
	}
	wg.Wait()
	return int(success.Load()), int(failed.Load())
}

func (s *Scheduler) concurrency() int {
	return positiveOr(s.Concurrency, DefaultConcurrency)
}

func (s *Scheduler) cooldown() time.Duration {
	if s.PageCooldown < 0 {
		return 0
	}
	if s.PageCooldown == 0 {
		return DefaultPageCooldown
	}
	return s.PageCooldown
}

func (s *Scheduler) lockTTL() time.Duration {
	return positiveDur(s.LockTTL, DefaultLockTTL)
}

func (s *Scheduler) now() func() time.Time {
	if s.Now != nil {
		return s.Now
	}
	return time.Now
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func positiveDur(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
