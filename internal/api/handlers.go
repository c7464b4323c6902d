// Package api exposes the tracking service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/container-tracker/internal/common"
	"github.com/noah-isme/container-tracker/internal/schedule"
	"github.com/noah-isme/container-tracker/internal/scheduler"
	"github.com/noah-isme/container-tracker/internal/tracker"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

const maxBodyBytes = 64 << 10

type trackService interface {
	TrackAndNotify(ctx context.Context, req tracking.Request) (tracker.Result, error)
}

// TaskEnqueuer is the subset of asynq.Client used to trigger cycles.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ScheduleHandler serves the schedule routes used by the worker.
type ScheduleHandler struct {
	Tracker trackService
	Pending schedule.PendingSource
	Tasks   TaskEnqueuer

	// CycleTimeout caps a manually triggered cycle; see scheduler.NewCycleTask.
	CycleTimeout time.Duration
	Logger       zerolog.Logger
}

// trackBody is the track-and-notify request body. The requester comes from
// the bearer token, never from the body.
type trackBody struct {
	ContainerNo string `json:"container_no"`
	EmailTo     string `json:"email_to"`
}

// TrackAndNotify resolves one container and emails its report.
func (h ScheduleHandler) TrackAndNotify(w http.ResponseWriter, r *http.Request) {
	if h.Tracker == nil {
		common.JSONError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "tracking service not configured", nil)
		return
	}
	var body trackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	req := tracking.Request{
		ContainerNo: body.ContainerNo,
		EmailTo:     body.EmailTo,
		CallerIP:    common.ClientIP(r),
	}
	if id, ok := common.RequesterID(r.Context()); ok {
		req.RequesterID = id
	}

	result, err := h.Tracker.TrackAndNotify(r.Context(), req)
	if err != nil {
		if status := common.StatusOf(err); status >= http.StatusInternalServerError {
			h.Logger.Error().Err(err).Str("container_no", req.ContainerNo).Int("status", status).Msg("track_and_notify_failed")
		}
		common.WriteAppError(w, err)
		return
	}
	common.JSONSuccess(w, http.StatusOK, "Tracking report sent", result)
}

// Active returns one page of pending requests.
func (h ScheduleHandler) Active(w http.ResponseWriter, r *http.Request) {
	if h.Pending == nil {
		common.JSONError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "schedule store not configured", nil)
		return
	}
	offset, limit := common.ParseOffsetLimit(r, scheduler.DefaultBatchSize, 1000)
	page, err := h.Pending.Page(r.Context(), offset, limit)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list_active_schedules_failed")
		common.JSONError(w, http.StatusInternalServerError, "SCHEDULE_QUERY_FAILED", "unable to fetch active schedules", nil)
		return
	}
	common.JSONSuccess(w, http.StatusOK, "", page)
}

// RunCycle enqueues an immediate cycle for the worker.
func (h ScheduleHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	if h.Tasks == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "task queue not configured", nil)
		return
	}
	task, err := scheduler.NewCycleTask("manual", h.CycleTimeout)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unable to build cycle task", nil)
		return
	}
	info, err := h.Tasks.EnqueueContext(r.Context(), task)
	if err != nil {
		h.Logger.Error().Err(err).Msg("enqueue_cycle_failed")
		common.JSONError(w, http.StatusBadGateway, "ENQUEUE_FAILED", "unable to enqueue cycle", nil)
		return
	}
	common.JSONSuccess(w, http.StatusAccepted, "Cycle enqueued", map[string]string{"task_id": info.ID, "queue": info.Queue})
}
