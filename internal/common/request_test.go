package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/container-tracker/internal/common"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	require.Equal(t, "10.1.2.3", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "172.16.0.9")
	require.Equal(t, "172.16.0.9", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	require.Equal(t, "203.0.113.7", common.ClientIP(req))

	require.Equal(t, common.LoopbackIP, common.ClientIP(nil))
}

func TestParseOffsetLimit(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/schedules/active?offset=1000&limit=500", nil)
	offset, limit := common.ParseOffsetLimit(req, 100, 1000)
	require.Equal(t, 1000, offset)
	require.Equal(t, 500, limit)

	req = httptest.NewRequest(http.MethodGet, "/api/schedules/active?offset=-4&limit=abc", nil)
	offset, limit = common.ParseOffsetLimit(req, 100, 1000)
	require.Equal(t, 0, offset)
	require.Equal(t, 100, limit)

	req = httptest.NewRequest(http.MethodGet, "/api/schedules/active?limit=5000", nil)
	_, limit = common.ParseOffsetLimit(req, 100, 1000)
	require.Equal(t, 1000, limit)
}

func TestWriteAppError(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	common.WriteAppError(rr, common.NewAppError("NOT_FOUND", "missing", http.StatusNotFound, nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"status":"error","code":"NOT_FOUND","message":"missing"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	common.WriteAppError(rr, http.ErrHandlerTimeout)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
