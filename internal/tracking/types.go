package tracking

import "time"

const (
	// Empty marks a field the provider did not supply.
	Empty = ""
	// NotAvailable is shown for absent timestamps and unresolved status.
	NotAvailable = "N/A"
)

// Request asks for one container to be tracked and reported.
type Request struct {
	ContainerNo string `json:"container_no" validate:"required,max=32"`
	EmailTo     string `json:"email_to" validate:"required,email"`
	RequesterID string `json:"requester_id,omitempty"`
	CallerIP    string `json:"-"`
}

// Descriptor identifies a provider in the chain. Lower Priority is tried first.
type Descriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Priority    int    `json:"priority"`
}

// Event is one row of a shipment's movement history. Every field is
// populated; anything the provider lacks holds Empty.
type Event struct {
	OrderID       string `json:"order_id"`
	Timestamp     string `json:"timestamp"`
	Location      string `json:"location"`
	Facility      string `json:"facility"`
	Label         string `json:"event"`
	Type          string `json:"type"`
	Description   string `json:"description"`
	TransportType string `json:"transport_type"`
	VesselVoyage  string `json:"vessel_voyage"`
	VesselIMO     string `json:"vessel_imo"`
}

// MetadataRow is a labelled header value shown above the event table.
type MetadataRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Record is the provider-independent result of a successful resolution.
type Record struct {
	Provider    Descriptor    `json:"provider"`
	ContainerNo string        `json:"container_no"`
	Status      string        `json:"status"`
	Columns     []Column      `json:"columns"`
	Events      []Event       `json:"events"`
	Metadata    []MetadataRow `json:"metadata"`
	GeneratedAt time.Time     `json:"generated_at"`

	// ProviderEvents counts the events in the provider payload, including
	// any the variant filtered out of Events.
	ProviderEvents int `json:"provider_events"`
}

// EventCount is the number of events the provider reported for the container.
func (r Record) EventCount() int {
	if r.ProviderEvents > len(r.Events) {
		return r.ProviderEvents
	}
	return len(r.Events)
}

// Column names an event table column.
type Column string

const (
	ColID            Column = "ID"
	ColDate          Column = "DATE"
	ColLocation      Column = "LOCATION"
	ColFacility      Column = "FACILITY"
	ColEvent         Column = "EVENT"
	ColDescription   Column = "DESCRIPTION"
	ColType          Column = "TYPE"
	ColTransportType Column = "TRANSPORT TYPE"
	ColVesselVoyage  Column = "VESSEL VOYAGE"
	ColVesselIMO     Column = "VESSEL IMO"
	ColStatus        Column = "STATUS"
)

// Cell returns the event value shown under column c.
func (e Event) Cell(c Column) string {
	switch c {
	case ColID:
		return e.OrderID
	case ColDate:
		return e.Timestamp
	case ColLocation:
		return e.Location
	case ColFacility:
		return e.Facility
	case ColEvent:
		return e.Label
	case ColDescription:
		return e.Description
	case ColType, ColStatus:
		return e.Type
	case ColTransportType:
		return e.TransportType
	case ColVesselVoyage:
		return e.VesselVoyage
	case ColVesselIMO:
		return e.VesselIMO
	default:
		return Empty
	}
}
