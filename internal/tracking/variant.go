package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Variant is the capability set of one provider's response schema.
type Variant interface {
	Descriptor() Descriptor
	Columns() []Column
	// BuildRequestURL expands the registry endpoint for a container.
	BuildRequestURL(endpoint, containerNo string) string
	// Decode parses the provider payload. A schema mismatch is an error.
	Decode(raw json.RawMessage) (Payload, error)
}

// Payload is a decoded provider response.
type Payload interface {
	// HasEvents is the provider's "has valid data" predicate.
	HasEvents() bool
	// EventCount is the number of events the provider returned, before any
	// filtering.
	EventCount() int
	ExtractEvents(now time.Time) []Event
	ExtractStatus() string
	BuildMetadataRows() []MetadataRow
}

// ContainerPlaceholder is replaced by the container number when present in
// an endpoint template; otherwise the number is appended.
const ContainerPlaceholder = "{container}"

func buildRequestURL(endpoint, containerNo string) string {
	escaped := url.PathEscape(strings.TrimSpace(containerNo))
	if strings.Contains(endpoint, ContainerPlaceholder) {
		return strings.ReplaceAll(endpoint, ContainerPlaceholder, escaped)
	}
	return endpoint + escaped
}

// DefaultVariants returns the built-in providers in chain order.
func DefaultVariants() []Variant {
	variants := []Variant{AllForward{}, FindTeu{}, SeaRates{}}
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Descriptor().Priority < variants[j].Descriptor().Priority
	})
	return variants
}

// VariantFor looks up a built-in variant by provider id.
func VariantFor(id string) (Variant, bool) {
	for _, v := range DefaultVariants() {
		if v.Descriptor().ID == id {
			return v, true
		}
	}
	return nil, false
}

// text decodes any JSON scalar into its string form; null becomes Empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Empty
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	if bytes.Equal(b, []byte("true")) || bytes.Equal(b, []byte("false")) {
		*t = text(b)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("tracking: expected scalar, got %.32s", b)
	}
	*t = text(b)
	return nil
}

func (t text) String() string { return strings.TrimSpace(string(t)) }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// parseTimestamp accepts the layouts seen across providers. Zone-less
// values are read as UTC.
func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// displayTimestamp renders a provider timestamp for reports. Unparseable
// values are shown as given.
func displayTimestamp(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return NotAvailable
	}
	if ts, ok := parseTimestamp(value); ok {
		return ts.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return Empty
}

func decodeStrict(raw json.RawMessage, into any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ErrNoData
	}
	return json.Unmarshal(raw, into)
}
