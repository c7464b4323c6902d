package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/noah-isme/container-tracker/internal/tracking"
)

// htmlWriter stops writing after the first error and remembers it.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlWriter) cell(tag, value string) {
	h.raw("<" + tag + ">")
	h.text(value)
	h.raw("</" + tag + ">")
}

const reportStyle = `body{font-family:Arial,Helvetica,sans-serif;color:#333;margin:24px}
h1{color:#1a4d8f;font-size:22px;margin:0 0 4px}
.subtitle{color:#666;font-size:12px;margin-bottom:20px}
table{border-collapse:collapse;width:100%;margin-bottom:20px;font-size:11px}
th{background:#1a4d8f;color:#fff;text-align:left;padding:8px}
td{border-bottom:1px solid #e0e0e0;padding:8px;vertical-align:top}
.meta th{width:30%;background:#f0f4fa;color:#1a4d8f}
.footer{color:#888;font-size:10px;border-top:1px solid #e0e0e0;padding-top:8px}`

// Document is the full tracking report.
func Document(brand string, rec tracking.Record) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		h.text("Container Report - " + rec.ContainerNo)
		h.raw(`</title><style>` + reportStyle + `</style></head><body>`)

		h.raw(`<h1>`)
		h.text(brand + " Container Tracking Report")
		h.raw(`</h1><div class="subtitle">`)
		h.text(fmt.Sprintf("Container %s via %s, status %s", rec.ContainerNo, rec.Provider.DisplayName, rec.Status))
		h.raw(`</div>`)

		writeMetadata(h, rec.Metadata)
		writeEvents(h, rec.Columns, rec.Events)

		h.raw(`<div class="footer">`)
		h.text(fmt.Sprintf("Generated on %s. This report was generated automatically by %s tracking system.",
			rec.GeneratedAt.UTC().Format(time.RFC1123), brand))
		h.raw(`</div></body></html>`)
		return h.err
	})
}

// Summary is the email body accompanying the report.
func Summary(brand string, rec tracking.Record) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div style="font-family:Arial,Helvetica,sans-serif;color:#333">`)
		h.raw(`<h2 style="color:#1a4d8f">`)
		h.text("Container Tracking Report - " + rec.ContainerNo)
		h.raw(`</h2><p>`)
		h.text(fmt.Sprintf("Please find attached the tracking report for container %s.", rec.ContainerNo))
		h.raw(`</p><ul>`)
		h.cell("li", "Data source: "+rec.Provider.DisplayName)
		h.cell("li", "Total events: "+strconv.Itoa(rec.EventCount()))
		h.cell("li", "Current status: "+rec.Status)
		h.raw(`</ul>`)
		if len(rec.Metadata) > 0 {
			h.raw(`<h3>Shipment summary</h3>`)
			writeMetadata(h, rec.Metadata)
		}
		h.raw(`<p style="color:#888;font-size:11px">`)
		h.text(fmt.Sprintf("This email was sent automatically by %s tracking system.", brand))
		h.raw(`</p></div>`)
		return h.err
	})
}

func writeMetadata(h *htmlWriter, rows []tracking.MetadataRow) {
	if len(rows) == 0 {
		return
	}
	h.raw(`<table class="meta">`)
	for _, row := range rows {
		h.raw(`<tr>`)
		h.cell("th", row.Label)
		h.cell("td", row.Value)
		h.raw(`</tr>`)
	}
	h.raw(`</table>`)
}

func writeEvents(h *htmlWriter, columns []tracking.Column, events []tracking.Event) {
	h.raw(`<table class="events"><thead><tr>`)
	for _, col := range columns {
		h.cell("th", string(col))
	}
	h.raw(`</tr></thead><tbody>`)
	if len(events) == 0 {
		h.raw(`<tr><td colspan="` + strconv.Itoa(max(len(columns), 1)) + `">No events available</td></tr>`)
	}
	for _, ev := range events {
		h.raw(`<tr>`)
		for _, col := range columns {
			h.cell("td", ev.Cell(col))
		}
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table>`)
}
