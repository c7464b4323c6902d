package tracking

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Normalizer converts a winning provider payload into a Record.
type Normalizer struct {
	// Now defaults to time.Now. It is read once per Normalize call.
	Now func() time.Time
}

// Normalize decodes raw with v and builds the canonical record. Metadata
// rows with empty values are dropped. Events removed by a variant's time
// filter may leave Events empty; the chain has already accepted the payload.
func (n Normalizer) Normalize(v Variant, raw json.RawMessage, containerNo string) (Record, error) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	at := now()

	payload, err := v.Decode(raw)
	if err != nil {
		return Record{}, fmt.Errorf("normalize %s: %w", v.Descriptor().ID, err)
	}
	events := payload.ExtractEvents(at)

	rows := payload.BuildMetadataRows()
	metadata := make([]MetadataRow, 0, len(rows))
	for _, row := range rows {
		if value := strings.TrimSpace(row.Value); value != "" {
			metadata = append(metadata, MetadataRow{Label: row.Label, Value: value})
		}
	}

	status := strings.TrimSpace(payload.ExtractStatus())
	if status == "" {
		status = NotAvailable
	}

	return Record{
		Provider:    v.Descriptor(),
		ContainerNo: strings.TrimSpace(containerNo),
		Status:      status,
		Columns:     append([]Column(nil), v.Columns()...),
		Events:      events,
		Metadata:    metadata,
		GeneratedAt: at,

		ProviderEvents: payload.EventCount(),
	}, nil
}
