package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/container-tracker/internal/api"
	"github.com/noah-isme/container-tracker/internal/audit"
	"github.com/noah-isme/container-tracker/internal/auth"
	"github.com/noah-isme/container-tracker/internal/common"
	"github.com/noah-isme/container-tracker/internal/health"
	"github.com/noah-isme/container-tracker/internal/scheduler"
	"github.com/noah-isme/container-tracker/internal/tracker"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

type stubTracker struct {
	got tracking.Request
	res tracker.Result
	err error
}

func (s *stubTracker) TrackAndNotify(_ context.Context, req tracking.Request) (tracker.Result, error) {
	s.got = req
	return s.res, s.err
}

type stubPending struct {
	offset, limit int
}

func (s *stubPending) Page(_ context.Context, offset, limit int) ([]tracking.Request, error) {
	s.offset, s.limit = offset, limit
	return []tracking.Request{{ContainerNo: "MSCU1", EmailTo: "a@example.com"}}, nil
}

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: scheduler.QueueName}, nil
}

type okChecker struct{}

func (okChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (okChecker) PingRedis(context.Context, time.Duration) error { return nil }

type fixture struct {
	handler http.Handler
	tracker *stubTracker
	pending *stubPending
	tasks   *stubEnqueuer
	logs    *audit.MemoryStore
}

func newFixture() *fixture {
	return newFixtureWithTokens(nil)
}

func newFixtureWithTokens(tokens api.TokenParser) *fixture {
	f := &fixture{
		tracker: &stubTracker{},
		pending: &stubPending{},
		tasks:   &stubEnqueuer{},
		logs:    &audit.MemoryStore{},
	}
	f.handler = api.NewRouter(api.RouterConfig{
		Schedules: api.ScheduleHandler{Tracker: f.tracker, Pending: f.pending, Tasks: f.tasks, Logger: zerolog.Nop()},
		Logs:      audit.Handler{Store: f.logs},
		Health:    health.Handler{Checker: okChecker{}},
		Logger:    zerolog.Nop(),
		Gatherer:  prometheus.NewRegistry(),
		Tokens:    tokens,
	})
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	return f.doAs("", method, target, body)
}

func (f *fixture) doAs(token, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestTrackAndNotifySuccess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.tracker.res = tracker.Result{ContainerNo: "MSCU1", EmailTo: "a@example.com", APIUsed: "FindTeu", EventsCount: 4, TrackingStatus: "IN TRANSIT"}

	rr := f.do(http.MethodPost, "/api/schedules/track-and-notify", `{"container_no":"MSCU1","email_to":"a@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	require.Equal(t, "success", body["status"])
	data := body["data"].(map[string]any)
	require.Equal(t, "FindTeu", data["api_used"])
	require.EqualValues(t, 4, data["events_count"])

	require.Equal(t, "MSCU1", f.tracker.got.ContainerNo)
	require.Equal(t, "203.0.113.9", f.tracker.got.CallerIP)
}

func testTokens() auth.Tokens {
	return auth.Tokens{Secret: []byte("router-test-secret-router-test-secret"), Issuer: "container-tracker"}
}

func TestTrackAndNotifyRequesterFromToken(t *testing.T) {
	t.Parallel()

	tokens := testTokens()
	signed, err := tokens.Sign("user-7")
	require.NoError(t, err)

	f := newFixtureWithTokens(tokens)
	rr := f.doAs(signed, http.MethodPost, "/api/schedules/track-and-notify",
		`{"container_no":"MSCU1","email_to":"a@example.com","requester_id":"someone-else"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "user-7", f.tracker.got.RequesterID)
}

func TestTrackAndNotifyWithoutTokenIgnoresBodyRequester(t *testing.T) {
	t.Parallel()

	for name, f := range map[string]*fixture{
		"auth disabled": newFixture(),
		"auth enabled":  newFixtureWithTokens(testTokens()),
	} {
		rr := f.do(http.MethodPost, "/api/schedules/track-and-notify",
			`{"container_no":"MSCU1","email_to":"a@example.com","requester_id":"forged-admin"}`)
		require.Equal(t, http.StatusOK, rr.Code, name)
		require.Equal(t, "MSCU1", f.tracker.got.ContainerNo, name)
		require.Empty(t, f.tracker.got.RequesterID, name)
	}
}

func TestTrackAndNotifyRejectsInvalidToken(t *testing.T) {
	t.Parallel()

	other := testTokens()
	other.Secret = []byte("a-different-secret-a-different-secret")
	forged, err := other.Sign("user-7")
	require.NoError(t, err)

	f := newFixtureWithTokens(testTokens())
	rr := f.doAs(forged, http.MethodPost, "/api/schedules/track-and-notify", `{"container_no":"MSCU1","email_to":"a@example.com"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "UNAUTHORIZED", decode(t, rr)["code"])
	require.Empty(t, f.tracker.got.ContainerNo)
}

func TestTrackAndNotifyErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", common.NewAppError("NOT_FOUND", tracker.NotFoundMessage, http.StatusNotFound, tracking.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"validation", common.NewAppError("VALIDATION_ERROR", "bad", http.StatusBadRequest, tracker.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.tracker.err = tc.err
			rr := f.do(http.MethodPost, "/api/schedules/track-and-notify", `{"container_no":"X","email_to":"a@example.com"}`)
			require.Equal(t, tc.status, rr.Code)
			body := decode(t, rr)
			require.Equal(t, "error", body["status"])
			require.Equal(t, tc.code, body["code"])
		})
	}
}

func TestTrackAndNotifyDeliveryFailureCarriesResult(t *testing.T) {
	t.Parallel()

	f := newFixture()
	appErr := common.NewAppError("DELIVERY_FAILED", "not delivered", http.StatusBadGateway, tracker.ErrDeliveryFailed)
	appErr.Details = tracker.Result{ContainerNo: "X", APIUsed: "AllForward", EventsCount: 2}
	f.tracker.err = appErr

	rr := f.do(http.MethodPost, "/api/schedules/track-and-notify", `{"container_no":"X","email_to":"a@example.com"}`)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	details := decode(t, rr)["details"].(map[string]any)
	require.Equal(t, "AllForward", details["api_used"])
}

func TestTrackAndNotifyRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rr := f.do(http.MethodPost, "/api/schedules/track-and-notify", `{"container_no":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, f.tracker.got.ContainerNo)
}

func TestActiveSchedulesPagination(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rr := f.do(http.MethodGet, "/api/schedules/active?offset=1000&limit=500", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1000, f.pending.offset)
	require.Equal(t, 500, f.pending.limit)
	data := decode(t, rr)["data"].([]any)
	require.Len(t, data, 1)
	require.Equal(t, "MSCU1", data[0].(map[string]any)["container_no"])
}

func TestTrackingLogs(t *testing.T) {
	t.Parallel()

	f := newFixture()
	svc := audit.Service{Store: f.logs}
	require.NoError(t, svc.Record(context.Background(), audit.Entry{ContainerNo: "A1", ProviderLabel: "ocean-af", Outcome: audit.OutcomeFailure}))
	require.NoError(t, svc.Record(context.Background(), audit.Entry{ContainerNo: "B2", ProviderLabel: "ocean-af", Outcome: audit.OutcomeSuccess}))

	rr := f.do(http.MethodGet, "/api/tracking-logs?container_no=A1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode(t, rr)["data"].([]any), 1)
}

func TestRunCycleEnqueuesTask(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rr := f.do(http.MethodPost, "/api/schedules/run", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, f.tasks.tasks, 1)
	require.Equal(t, scheduler.TaskTypeCycle, f.tasks.tasks[0].Type())
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	t.Parallel()

	f := newFixture()
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health/live", "").Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", "").Code)
}

func TestOversizedBodyRejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	payload := `{"container_no":"X","email_to":"` + strings.Repeat("a", 70<<10) + `@example.com"}`
	rr := f.do(http.MethodPost, "/api/schedules/track-and-notify", payload)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Empty(t, f.tracker.got.ContainerNo)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rr := newFixture().do(http.MethodGet, "/api/schedules/active", "")
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}
