package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskTypeCycle is the asynq task that starts one cycle.
const TaskTypeCycle = "tracking:cycle"

// QueueName is the asynq queue cycle tasks are placed on.
const QueueName = "tracking"

type cyclePayload struct {
	Trigger string `json:"trigger"`
}

// NewCycleTask builds a cycle task. Cycles are never retried; the next
// trigger starts a fresh one. timeout caps the handler context and should
// match the cycle lock TTL; zero means DefaultLockTTL. asynq's own 30m
// default would cancel long cycles between pages.
func NewCycleTask(trigger string, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(cyclePayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCycle, payload,
		asynq.MaxRetry(0),
		asynq.Queue(QueueName),
		asynq.Timeout(positiveDur(timeout, DefaultLockTTL)),
	), nil
}

// RegisterCron registers the cycle task under cronSpec and returns the
// scheduler entry id.
func RegisterCron(s *asynq.Scheduler, cronSpec string, timeout time.Duration) (string, error) {
	task, err := NewCycleTask("cron", timeout)
	if err != nil {
		return "", err
	}
	return s.Register(cronSpec, task)
}

// TaskHandler adapts the Scheduler to asynq.
type TaskHandler struct {
	Scheduler *Scheduler
	Logger    zerolog.Logger
}

// HandleCycleTask runs a cycle. Overlapping triggers are skipped without
// error. An aborted cycle fails the task without a retry.
func (h TaskHandler) HandleCycleTask(ctx context.Context, t *asynq.Task) error {
	var p cyclePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode cycle payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	started := time.Now()
	summary, err := h.Scheduler.TryRunCycle(ctx)
	if errors.Is(err, ErrCycleRunning) {
		h.Logger.Warn().Str("trigger", p.Trigger).Msg("cycle_skipped_overlap")
		return nil
	}
	if err != nil {
		return fmt.Errorf("run cycle: %v: %w", err, asynq.SkipRetry)
	}
	if summary.Aborted {
		return fmt.Errorf("cycle %s aborted after %s: %v: %w", summary.CycleID, time.Since(started).Round(time.Millisecond), summary.Err, asynq.SkipRetry)
	}
	return nil
}

// NewServeMux routes cycle tasks to h.
func NewServeMux(h TaskHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeCycle, h.HandleCycleTask)
	return mux
}
