package tracking

import (
	"encoding/json"
	"strings"
	"time"
)

// shipmentData is the container-position schema shared by AllForward and
// SeaRates. Events reference locations, facilities and vessels by id.
type shipmentData struct {
	Metadata struct {
		Type        text `json:"type"`
		Number      text `json:"number"`
		Sealine     text `json:"sealine"`
		SealineName text `json:"sealine_name"`
		UpdatedAt   text `json:"updated_at"`
		Status      text `json:"status"`
	} `json:"metadata"`
	Locations []struct {
		ID      text `json:"id"`
		Name    text `json:"name"`
		State   text `json:"state"`
		Country text `json:"country"`
	} `json:"locations"`
	Facilities []struct {
		ID   text `json:"id"`
		Name text `json:"name"`
	} `json:"facilities"`
	Vessels []struct {
		ID   text `json:"id"`
		Name text `json:"name"`
		IMO  text `json:"imo"`
	} `json:"vessels"`
	Route struct {
		POL routePoint `json:"pol"`
		POD routePoint `json:"pod"`
	} `json:"route"`
	Containers []struct {
		Status text            `json:"status"`
		Events []shipmentEvent `json:"events"`
	} `json:"containers"`
}

type routePoint struct {
	Location text `json:"location"`
	Date     text `json:"date"`
}

type shipmentEvent struct {
	OrderID       text `json:"order_id"`
	Date          text `json:"date"`
	Location      text `json:"location"`
	Facility      text `json:"facility"`
	EventType     text `json:"event_type"`
	EventCode     text `json:"event_code"`
	Description   text `json:"description"`
	Type          text `json:"type"`
	TransportType text `json:"transport_type"`
	Vessel        text `json:"vessel"`
	Voyage        text `json:"voyage"`
}

var shipmentColumns = []Column{
	ColID, ColDate, ColLocation, ColFacility, ColEvent,
	ColDescription, ColType, ColTransportType, ColVesselVoyage, ColVesselIMO,
}

func (d *shipmentData) events() []shipmentEvent {
	if d == nil || len(d.Containers) == 0 {
		return nil
	}
	return d.Containers[0].Events
}

func (d *shipmentData) hasEvents() bool { return len(d.events()) > 0 }

func (d *shipmentData) status() string {
	var first string
	if d != nil && len(d.Containers) > 0 {
		first = d.Containers[0].Status.String()
	}
	if s := firstNonEmpty(d.Metadata.Status.String(), first); s != Empty {
		return s
	}
	return NotAvailable
}

// headerLocation is the "name, state, country" form used in metadata rows.
func (d *shipmentData) headerLocation(id text) string {
	if id.String() == "" {
		return Empty
	}
	for _, loc := range d.Locations {
		if loc.ID.String() == id.String() {
			return joinNonEmpty(", ", loc.Name.String(), loc.State.String(), loc.Country.String())
		}
	}
	return Empty
}

// eventLocation is the shorter "name, country" form used in event rows.
func (d *shipmentData) eventLocation(id text) string {
	if id.String() == "" {
		return Empty
	}
	for _, loc := range d.Locations {
		if loc.ID.String() == id.String() {
			return joinNonEmpty(", ", loc.Name.String(), loc.Country.String())
		}
	}
	return Empty
}

func (d *shipmentData) facility(id text) string {
	if id.String() == "" {
		return Empty
	}
	for _, f := range d.Facilities {
		if f.ID.String() == id.String() {
			return f.Name.String()
		}
	}
	return Empty
}

func (d *shipmentData) vessel(id, voyage text) (string, string) {
	if id.String() == "" {
		return Empty, Empty
	}
	for _, v := range d.Vessels {
		if v.ID.String() == id.String() {
			return joinNonEmpty(", ", v.Name.String(), voyage.String()), v.IMO.String()
		}
	}
	return Empty, Empty
}

func (d *shipmentData) toEvents(upperType bool) []Event {
	raw := d.events()
	out := make([]Event, 0, len(raw))
	for _, ev := range raw {
		voyage, imo := d.vessel(ev.Vessel, ev.Voyage)
		typ := ev.Type.String()
		if upperType {
			typ = strings.ToUpper(typ)
		}
		out = append(out, Event{
			OrderID:       ev.OrderID.String(),
			Timestamp:     displayTimestamp(ev.Date.String()),
			Location:      d.eventLocation(ev.Location),
			Facility:      d.facility(ev.Facility),
			Label:         joinNonEmpty(" ", ev.EventType.String(), ev.EventCode.String()),
			Type:          typ,
			Description:   ev.Description.String(),
			TransportType: ev.TransportType.String(),
			VesselVoyage:  voyage,
			VesselIMO:     imo,
		})
	}
	return out
}

// AllForward reads the containerPosition envelope.
type AllForward struct{}

func (AllForward) Descriptor() Descriptor {
	return Descriptor{ID: "ocean-af", DisplayName: "AllForward", Priority: 1}
}

func (AllForward) Columns() []Column { return shipmentColumns }

func (AllForward) BuildRequestURL(endpoint, containerNo string) string {
	return buildRequestURL(endpoint, containerNo)
}

func (AllForward) Decode(raw json.RawMessage) (Payload, error) {
	var body struct {
		ContainerPosition struct {
			Data *shipmentData `json:"data"`
		} `json:"containerPosition"`
	}
	if err := decodeStrict(raw, &body); err != nil {
		return nil, err
	}
	if body.ContainerPosition.Data == nil {
		body.ContainerPosition.Data = &shipmentData{}
	}
	return allForwardPayload{body.ContainerPosition.Data}, nil
}

type allForwardPayload struct{ d *shipmentData }

func (p allForwardPayload) HasEvents() bool { return p.d.hasEvents() }

func (p allForwardPayload) EventCount() int { return len(p.d.events()) }

func (p allForwardPayload) ExtractEvents(time.Time) []Event { return p.d.toEvents(true) }

func (p allForwardPayload) ExtractStatus() string { return p.d.status() }

func (p allForwardPayload) BuildMetadataRows() []MetadataRow {
	m := p.d.Metadata
	return []MetadataRow{
		{Label: "TYPE", Value: m.Type.String()},
		{Label: "CONTAINER", Value: m.Number.String()},
		{Label: "SEALINE", Value: m.Sealine.String()},
		{Label: "SEALINE NAME", Value: m.SealineName.String()},
		{Label: "UPDATED AT", Value: m.UpdatedAt.String()},
		{Label: "FROM", Value: p.d.headerLocation(p.d.Route.POL.Location)},
		{Label: "TO", Value: p.d.headerLocation(p.d.Route.POD.Location)},
		{Label: "STATUS", Value: m.Status.String()},
	}
}

// SeaRates reads the top-level data envelope.
type SeaRates struct{}

func (SeaRates) Descriptor() Descriptor {
	return Descriptor{ID: "ocean-sr", DisplayName: "SeaRates", Priority: 3}
}

func (SeaRates) Columns() []Column { return shipmentColumns }

func (SeaRates) BuildRequestURL(endpoint, containerNo string) string {
	return buildRequestURL(endpoint, containerNo)
}

func (SeaRates) Decode(raw json.RawMessage) (Payload, error) {
	var body struct {
		Data *shipmentData `json:"data"`
	}
	if err := decodeStrict(raw, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		body.Data = &shipmentData{}
	}
	return seaRatesPayload{body.Data}, nil
}

type seaRatesPayload struct{ d *shipmentData }

func (p seaRatesPayload) HasEvents() bool { return p.d.hasEvents() }

func (p seaRatesPayload) EventCount() int { return len(p.d.events()) }

func (p seaRatesPayload) ExtractEvents(time.Time) []Event { return p.d.toEvents(false) }

func (p seaRatesPayload) ExtractStatus() string { return p.d.status() }

func (p seaRatesPayload) BuildMetadataRows() []MetadataRow {
	m := p.d.Metadata
	return []MetadataRow{
		{Label: "Container", Value: m.Number.String()},
		{Label: "Sealine", Value: m.SealineName.String()},
		{Label: "Updated At", Value: m.UpdatedAt.String()},
		{Label: "FROM", Value: p.d.headerLocation(p.d.Route.POL.Location)},
		{Label: "TO", Value: p.d.headerLocation(p.d.Route.POD.Location)},
		{Label: "STATUS", Value: m.Status.String()},
		{Label: "ETA DEPARTURE", Value: p.d.Route.POL.Date.String()},
		{Label: "ETA ARRIVAL", Value: p.d.Route.POD.Date.String()},
	}
}
