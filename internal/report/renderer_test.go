package report_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/container-tracker/internal/report"
	"github.com/noah-isme/container-tracker/internal/resilience"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

func sampleRecord() tracking.Record {
	return tracking.Record{
		Provider:    tracking.FindTeu{}.Descriptor(),
		ContainerNo: "TGHU1112223",
		Status:      "Discharged",
		Columns:     tracking.FindTeu{}.Columns(),
		Events: []tracking.Event{
			{Timestamp: "2024-04-10 08:00", Location: "Singapore, SG", Facility: "Singapore", Type: "Loaded <ok>"},
		},
		Metadata:    []tracking.MetadataRow{{Label: "From", Value: "Singapore"}},
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fakeConverter struct {
	got []byte
	out []byte
	err error
}

func (f *fakeConverter) Convert(_ context.Context, html []byte) ([]byte, error) {
	f.got = html
	return f.out, f.err
}

func TestRenderHTMLArtifact(t *testing.T) {
	t.Parallel()

	art, err := report.Renderer{Brand: "TrackWW"}.Render(context.Background(), sampleRecord())
	require.NoError(t, err)
	require.Equal(t, report.ContentTypeHTML, art.ContentType)
	require.Equal(t, "html", art.Extension)

	html := string(art.Content)
	for _, col := range []string{"DATE", "LOCATION", "FACILITY", "STATUS"} {
		require.Contains(t, html, "<th>"+col+"</th>")
	}
	require.NotContains(t, html, "<th>VESSEL IMO</th>")
	require.Contains(t, html, "Loaded &lt;ok&gt;")
	require.Contains(t, html, "This report was generated automatically by TrackWW tracking system.")
	require.Contains(t, html, "<th>From</th><td>Singapore</td>")
}

func TestRenderWithConverter(t *testing.T) {
	t.Parallel()

	conv := &fakeConverter{out: []byte("%PDF-1.7")}
	art, err := report.Renderer{Converter: conv}.Render(context.Background(), sampleRecord())
	require.NoError(t, err)
	require.Equal(t, report.ContentTypePDF, art.ContentType)
	require.Equal(t, "pdf", art.Extension)
	require.True(t, strings.HasPrefix(string(conv.got), "<!DOCTYPE html>"))
}

func TestRenderConverterFailureIsError(t *testing.T) {
	t.Parallel()

	_, err := report.Renderer{Converter: &fakeConverter{err: errors.New("chromium crashed")}}.Render(context.Background(), sampleRecord())
	require.ErrorContains(t, err, "chromium crashed")

	_, err = report.Renderer{Converter: &fakeConverter{}}.Render(context.Background(), sampleRecord())
	require.Error(t, err)
}

func TestSummaryListsCounts(t *testing.T) {
	t.Parallel()

	body, err := report.Renderer{}.Summary(context.Background(), sampleRecord())
	require.NoError(t, err)
	require.Contains(t, body, "Data source: FindTeu")
	require.Contains(t, body, "Total events: 1")
	require.Contains(t, body, "Current status: Discharged")
}

func TestHTTPConverterPostsMultipart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		require.Equal(t, "index.html", header.Filename)
		data, _ := io.ReadAll(file)
		require.Equal(t, "<p>hi</p>", string(data))
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	out, err := report.HTTPConverter{URL: srv.URL, Client: srv.Client()}.Convert(context.Background(), []byte("<p>hi</p>"))
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(out))
}

func TestHTTPConverterBreakerFailsFast(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "chromium crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	conv := report.HTTPConverter{
		URL:     srv.URL,
		Client:  srv.Client(),
		Breaker: resilience.NewBreaker(1, 0.5, time.Hour).WithTarget("renderer-fail-fast"),
	}
	_, err := conv.Convert(context.Background(), []byte("<p>hi</p>"))
	require.ErrorContains(t, err, "status 500")

	_, err = conv.Convert(context.Background(), []byte("<p>hi</p>"))
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 1, calls)
}
