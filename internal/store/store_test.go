package store_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/container-tracker/internal/store"
)

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pgx5://u:p@db:5432/tracker?sslmode=disable", store.MigrateURL("postgres://u:p@db:5432/tracker?sslmode=disable"))
	require.Equal(t, "pgx5://db/tracker", store.MigrateURL("postgresql://db/tracker"))
	require.Equal(t, "pgx5://db/tracker", store.MigrateURL("pgx5://db/tracker"))
}

func TestTruncateSQL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SELECT 1 FROM t", store.TruncateSQL("  SELECT 1\n\tFROM   t ", 0))
	require.Equal(t, "SELECT...", store.TruncateSQL("SELECT * FROM t", 6))
}

func TestQueryTracerRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tracer := store.QueryTracer{}
	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "select endpoint_url from tracking_endpoints"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "pgx.query", spans[0].Name())
	var op string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "db.operation" {
			op = kv.Value.AsString()
		}
	}
	require.Equal(t, "SELECT", op)
}
