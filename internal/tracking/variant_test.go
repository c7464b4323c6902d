package tracking_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/container-tracker/internal/tracking"
)

func TestDefaultVariantsOrder(t *testing.T) {
	t.Parallel()

	ids := []string{}
	for _, v := range tracking.DefaultVariants() {
		ids = append(ids, v.Descriptor().ID)
	}
	require.Equal(t, []string{"ocean-af", "ocean-ft", "ocean-sr"}, ids)

	v, ok := tracking.VariantFor("ocean-sr")
	require.True(t, ok)
	require.Equal(t, "SeaRates", v.Descriptor().DisplayName)
	_, ok = tracking.VariantFor("air-xx")
	require.False(t, ok)
}

func TestBuildRequestURL(t *testing.T) {
	t.Parallel()

	v := tracking.AllForward{}
	require.Equal(t, "https://af.example/track?number=MSCU%201", v.BuildRequestURL("https://af.example/track?number=", "MSCU 1"))
	require.Equal(t, "https://ft.example/c/ABC/events", tracking.FindTeu{}.BuildRequestURL("https://ft.example/c/{container}/events", "ABC"))
}

func TestHasEventsPredicates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		variant tracking.Variant
		raw     string
		want    bool
	}{
		{"af with events", tracking.AllForward{}, `{"containerPosition":{"data":{"containers":[{"events":[{}]}]}}}`, true},
		{"af empty events", tracking.AllForward{}, `{"containerPosition":{"data":{"containers":[{"events":[]}]}}}`, false},
		{"af sr-shaped payload", tracking.AllForward{}, `{"data":{"containers":[{"events":[{}]}]}}`, false},
		{"sr with events", tracking.SeaRates{}, `{"data":{"containers":[{"events":[{}]}]}}`, true},
		{"sr no containers", tracking.SeaRates{}, `{"data":{"containers":[]}}`, false},
		{"ft with events", tracking.FindTeu{}, `{"events":[{"date":"2030-01-01"}]}`, true},
		{"ft empty", tracking.FindTeu{}, `{"events":[]}`, false},
	}
	for _, tc := range cases {
		payload, err := tc.variant.Decode(json.RawMessage(tc.raw))
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, payload.HasEvents(), tc.name)
	}
}
