package tracking

import (
	"encoding/json"
	"time"
)

type findTeuBody struct {
	Container     text `json:"container"`
	ContainerType text `json:"container_type"`
	UpdatedAt     text `json:"updated_at"`
	From          struct {
		Port text `json:"port"`
		Date text `json:"date"`
	} `json:"from"`
	To struct {
		Port text `json:"port"`
	} `json:"to"`
	Last struct {
		Status text `json:"status"`
		Port   text `json:"port"`
		Date   text `json:"date"`
	} `json:"last"`
	EstimatedArrival text `json:"estimated_time_of_arrival"`
	Events           []struct {
		Date     text `json:"date"`
		Location text `json:"location"`
		Port     text `json:"port"`
		Status   text `json:"status"`
	} `json:"events"`
}

// FindTeu reads a flat payload whose event list mixes past milestones with
// planned ones. Only events dated strictly before "now" are reported.
type FindTeu struct{}

func (FindTeu) Descriptor() Descriptor {
	return Descriptor{ID: "ocean-ft", DisplayName: "FindTeu", Priority: 2}
}

func (FindTeu) Columns() []Column {
	return []Column{ColDate, ColLocation, ColFacility, ColStatus}
}

func (FindTeu) BuildRequestURL(endpoint, containerNo string) string {
	return buildRequestURL(endpoint, containerNo)
}

func (FindTeu) Decode(raw json.RawMessage) (Payload, error) {
	var body findTeuBody
	if err := decodeStrict(raw, &body); err != nil {
		return nil, err
	}
	return findTeuPayload{&body}, nil
}

type findTeuPayload struct{ b *findTeuBody }

func (p findTeuPayload) HasEvents() bool { return len(p.b.Events) > 0 }

func (p findTeuPayload) EventCount() int { return len(p.b.Events) }

// ExtractEvents drops future-dated and undated events.
func (p findTeuPayload) ExtractEvents(now time.Time) []Event {
	out := make([]Event, 0, len(p.b.Events))
	for _, ev := range p.b.Events {
		ts, ok := parseTimestamp(ev.Date.String())
		if !ok || !ts.Before(now) {
			continue
		}
		out = append(out, Event{
			Timestamp: displayTimestamp(ev.Date.String()),
			Location:  ev.Location.String(),
			Facility:  ev.Port.String(),
			Type:      ev.Status.String(),
		})
	}
	return out
}

func (p findTeuPayload) ExtractStatus() string {
	if s := p.b.Last.Status.String(); s != "" {
		return s
	}
	return NotAvailable
}

func (p findTeuPayload) BuildMetadataRows() []MetadataRow {
	last := p.b.Last
	status := Empty
	if last.Status.String() != "" && last.Port.String() != "" && last.Date.String() != "" {
		status = joinNonEmpty(", ", last.Status.String(), last.Port.String(), last.Date.String())
	}
	return []MetadataRow{
		{Label: "Container", Value: p.b.Container.String()},
		{Label: "Type", Value: p.b.ContainerType.String()},
		{Label: "Updated At", Value: p.b.UpdatedAt.String()},
		{Label: "From", Value: p.b.From.Port.String()},
		{Label: "To", Value: p.b.To.Port.String()},
		{Label: "Status", Value: status},
		{Label: "ETA DEPARTURE", Value: p.b.From.Date.String()},
		{Label: "ETA ARRIVAL", Value: p.b.EstimatedArrival.String()},
	}
}
