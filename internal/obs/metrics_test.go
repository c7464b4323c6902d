package obs_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/container-tracker/internal/obs"
)

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 10, 250}, obs.ParseBucketsCSV("250, 5,nope,-1,10,5"))
	require.Empty(t, obs.ParseBucketsCSV(""))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("tracker", nil, reg)
	second := obs.NewHTTPMetrics("tracker", nil, reg)

	second.ReqTotal.WithLabelValues("GET", "/health/live", "200").Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(first.ReqTotal.WithLabelValues("GET", "/health/live", "200")))
}

func TestDurationMillis(t *testing.T) {
	require.Equal(t, 1500.0, obs.DurationMillis(1500*time.Millisecond))
}

func TestIncCounterIgnoresUnregistered(t *testing.T) {
	require.NotPanics(t, func() { obs.IncCounter(nil, "x") })
}
