// Package report renders tracking records into deliverable artifacts.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/a-h/templ"

	"github.com/noah-isme/container-tracker/internal/tracking"
)

const (
	ContentTypeHTML = "text/html"
	ContentTypePDF  = "application/pdf"
)

// Artifact is a rendered report ready for attachment.
type Artifact struct {
	Content     []byte
	ContentType string
	Extension   string
}

// Converter turns report HTML into a binary document.
type Converter interface {
	Convert(ctx context.Context, html []byte) ([]byte, error)
}

// Renderer builds the report artifact and the summary body. With no
// Converter the artifact is the HTML document itself.
type Renderer struct {
	Brand     string
	Converter Converter
}

// Render produces the report artifact for rec.
func (r Renderer) Render(ctx context.Context, rec tracking.Record) (Artifact, error) {
	if rec.ContainerNo == "" {
		return Artifact{}, errors.New("report: container number missing")
	}
	html, err := RenderComponent(ctx, Document(r.brand(), rec))
	if err != nil {
		return Artifact{}, fmt.Errorf("report: render html: %w", err)
	}
	if r.Converter == nil {
		return Artifact{Content: html, ContentType: ContentTypeHTML, Extension: "html"}, nil
	}
	pdf, err := r.Converter.Convert(ctx, html)
	if err != nil {
		return Artifact{}, fmt.Errorf("report: convert: %w", err)
	}
	if len(pdf) == 0 {
		return Artifact{}, errors.New("report: converter returned empty document")
	}
	return Artifact{Content: pdf, ContentType: ContentTypePDF, Extension: "pdf"}, nil
}

// Summary renders the short HTML message body sent with the artifact.
func (r Renderer) Summary(ctx context.Context, rec tracking.Record) (string, error) {
	body, err := RenderComponent(ctx, Summary(r.brand(), rec))
	if err != nil {
		return "", fmt.Errorf("report: render summary: %w", err)
	}
	return string(body), nil
}

func (r Renderer) brand() string {
	if r.Brand == "" {
		return "TrackWW"
	}
	return r.Brand
}

// RenderComponent renders a component to bytes.
func RenderComponent(ctx context.Context, component templ.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
