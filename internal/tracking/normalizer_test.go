package tracking_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/container-tracker/internal/tracking"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T, name string) json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func normalizer() tracking.Normalizer {
	return tracking.Normalizer{Now: func() time.Time { return fixedNow }}
}

func TestNormalizeAllForward(t *testing.T) {
	t.Parallel()

	rec, err := normalizer().Normalize(tracking.AllForward{}, loadFixture(t, "allforward.json"), "MSCU1234567")
	require.NoError(t, err)

	require.Equal(t, "ocean-af", rec.Provider.ID)
	require.Equal(t, "IN_TRANSIT", rec.Status)
	require.Equal(t, fixedNow, rec.GeneratedAt)
	require.Len(t, rec.Columns, 10)
	require.Len(t, rec.Events, 3)

	require.Equal(t, tracking.Event{
		OrderID:       "1",
		Timestamp:     "2024-04-18 09:30",
		Location:      "Shanghai, China",
		Facility:      "Yangshan Terminal",
		Label:         "EQUIPMENT GTIN",
		Type:          "LAND",
		Description:   "Gate in",
		TransportType: "TRUCK",
	}, rec.Events[0])
	require.Equal(t, "MSC OSCAR, FE417W", rec.Events[1].VesselVoyage)
	require.Equal(t, "9703291", rec.Events[1].VesselIMO)

	unresolved := rec.Events[2]
	require.Equal(t, tracking.NotAvailable, unresolved.Timestamp)
	require.Equal(t, tracking.Empty, unresolved.Location)
	require.Equal(t, "ARRI", unresolved.Label)
	require.Equal(t, tracking.Empty, unresolved.VesselVoyage)

	require.Equal(t, []tracking.MetadataRow{
		{Label: "TYPE", Value: "CT"},
		{Label: "CONTAINER", Value: "MSCU1234567"},
		{Label: "SEALINE", Value: "MSCU"},
		{Label: "SEALINE NAME", Value: "MSC"},
		{Label: "UPDATED AT", Value: "2024-05-02 08:00:00"},
		{Label: "FROM", Value: "Shanghai, Shanghai, China"},
		{Label: "TO", Value: "Rotterdam, Netherlands"},
		{Label: "STATUS", Value: "IN_TRANSIT"},
	}, rec.Metadata)
}

func TestNormalizeSeaRatesDropsEmptyMetadata(t *testing.T) {
	t.Parallel()

	rec, err := normalizer().Normalize(tracking.SeaRates{}, loadFixture(t, "searates.json"), "HLXU7654321")
	require.NoError(t, err)

	require.Equal(t, "DELIVERED", rec.Status, "falls back to the first container's status")
	labels := make([]string, 0, len(rec.Metadata))
	for _, row := range rec.Metadata {
		require.NotEmpty(t, row.Value)
		labels = append(labels, row.Label)
	}
	require.Equal(t, []string{"Container", "Sealine", "Updated At", "FROM", "TO", "ETA DEPARTURE"}, labels)

	require.Len(t, rec.Events, 1)
	ev := rec.Events[0]
	require.Equal(t, "sea", ev.Type, "type keeps provider casing")
	require.Equal(t, "BERLIN EXPRESS", ev.VesselVoyage)
	require.Equal(t, "9501332", ev.VesselIMO)
	require.Equal(t, tracking.Empty, ev.Facility)
}

func TestNormalizeFindTeuExcludesFutureEvents(t *testing.T) {
	t.Parallel()

	rec, err := normalizer().Normalize(tracking.FindTeu{}, loadFixture(t, "findteu.json"), "TGHU1112223")
	require.NoError(t, err)

	require.Equal(t, []tracking.Column{tracking.ColDate, tracking.ColLocation, tracking.ColFacility, tracking.ColStatus}, rec.Columns)
	require.Len(t, rec.Events, 2)
	require.Equal(t, 4, rec.ProviderEvents)
	require.Equal(t, 4, rec.EventCount(), "reported count includes future-dated events")
	for _, ev := range rec.Events {
		require.NotEqual(t, "Arrival", ev.Type)
		require.NotEqual(t, "Delivery", ev.Type)
	}
	require.Equal(t, "Loaded", rec.Events[0].Cell(tracking.ColStatus))
	require.Equal(t, "Singapore", rec.Events[0].Cell(tracking.ColFacility))
	require.Equal(t, "Discharged", rec.Status)
	require.Contains(t, rec.Metadata, tracking.MetadataRow{Label: "Status", Value: "Discharged, Colombo, 2024-04-22"})
	require.Contains(t, rec.Metadata, tracking.MetadataRow{Label: "ETA ARRIVAL", Value: "2024-05-20"})
}

func TestNormalizeFindTeuEventExactlyAtNowIsExcluded(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"events":[
		{"date":"2024-05-01T12:00:00Z","status":"Now"},
		{"date":"2024-05-01T11:59:59Z","status":"Before"}
	]}`)
	rec, err := normalizer().Normalize(tracking.FindTeu{}, raw, "X")
	require.NoError(t, err)
	require.Len(t, rec.Events, 1)
	require.Equal(t, "Before", rec.Events[0].Type)
	require.Equal(t, tracking.NotAvailable, rec.Status)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		variant tracking.Variant
		fixture string
	}{
		{tracking.AllForward{}, "allforward.json"},
		{tracking.SeaRates{}, "searates.json"},
		{tracking.FindTeu{}, "findteu.json"},
	} {
		raw := loadFixture(t, tc.fixture)
		first, err := normalizer().Normalize(tc.variant, raw, "C")
		require.NoError(t, err)
		second, err := normalizer().Normalize(tc.variant, raw, "C")
		require.NoError(t, err)
		require.Equal(t, first, second, tc.fixture)
	}
}

func TestNormalizeNeverLeaksMissingValueTokens(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		variant tracking.Variant
		fixture string
	}{
		{tracking.AllForward{}, "allforward.json"},
		{tracking.SeaRates{}, "searates.json"},
		{tracking.FindTeu{}, "findteu.json"},
	} {
		rec, err := normalizer().Normalize(tc.variant, loadFixture(t, tc.fixture), "C")
		require.NoError(t, err)
		for _, ev := range rec.Events {
			for _, col := range rec.Columns {
				cell := strings.ToLower(ev.Cell(col))
				require.NotContains(t, cell, "undefined", tc.fixture)
				require.NotContains(t, cell, "null", tc.fixture)
				require.NotContains(t, cell, "<nil>", tc.fixture)
			}
		}
	}
}

func TestNormalizeRejectsSchemaMismatch(t *testing.T) {
	t.Parallel()

	_, err := normalizer().Normalize(tracking.AllForward{}, json.RawMessage(`{"containerPosition": []}`), "C")
	require.Error(t, err)

	_, err = normalizer().Normalize(tracking.FindTeu{}, json.RawMessage(`null`), "C")
	require.ErrorIs(t, err, tracking.ErrNoData)
}
