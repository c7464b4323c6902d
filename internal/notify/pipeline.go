package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/container-tracker/internal/obs"
	"github.com/noah-isme/container-tracker/internal/report"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

var (
	// ErrPrecondition means the request lacks a recipient or container.
	ErrPrecondition = errors.New("notify: recipient and container number are required")
	// ErrArtifactGeneration means the report could not be rendered.
	ErrArtifactGeneration = errors.New("notify: report generation failed")
)

// ArtifactRenderer renders the report and its summary body.
type ArtifactRenderer interface {
	Render(ctx context.Context, rec tracking.Record) (report.Artifact, error)
	Summary(ctx context.Context, rec tracking.Record) (string, error)
}

// Outcome reports whether the rendered report reached the relay.
type Outcome struct {
	Success        bool
	Err            error
	Subject        string
	AttachmentName string
}

// Pipeline renders a record and hands it to the relay.
type Pipeline struct {
	Renderer        ArtifactRenderer
	Sender          Sender
	DeliveryTimeout time.Duration
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Notify checks preconditions, renders, then delivers. Precondition and
// rendering failures are returned as errors. Delivery failures are not:
// they come back as Outcome{Success: false}.
func (p Pipeline) Notify(ctx context.Context, req tracking.Request, rec tracking.Record) (Outcome, error) {
	to := strings.TrimSpace(req.EmailTo)
	container := strings.TrimSpace(req.ContainerNo)
	if to == "" || container == "" {
		return Outcome{}, ErrPrecondition
	}
	if p.Renderer == nil || p.Sender == nil {
		return Outcome{}, errors.New("notify: pipeline not configured")
	}

	ctx, span := otel.Tracer("notify.pipeline").Start(ctx, "notify.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("container_no", container), attribute.String("provider", rec.Provider.ID))

	artifact, err := p.Renderer.Render(ctx, rec)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrArtifactGeneration, err)
	}
	body, err := p.Renderer.Summary(ctx, rec)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrArtifactGeneration, err)
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	out := Outcome{
		Subject:        SubjectFor(container),
		AttachmentName: AttachmentName(container, artifact.Extension, now()),
	}
	msg := Message{
		To:       to,
		Subject:  out.Subject,
		HTMLBody: body,
		Attachments: []Attachment{{
			Name:        out.AttachmentName,
			Content:     artifact.Content,
			ContentType: artifact.ContentType,
		}},
	}

	sendCtx := ctx
	if p.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, p.DeliveryTimeout)
		defer cancel()
	}
	if err := p.Sender.Send(sendCtx, msg); err != nil {
		out.Err = err
		obs.IncCounter(obs.DeliveriesTotal, "failed")
		p.Logger.Warn().Err(err).Str("container_no", container).Str("email_to", to).Msg("report_delivery_failed")
		return out, nil
	}
	out.Success = true
	obs.IncCounter(obs.DeliveriesTotal, "delivered")
	p.Logger.Info().
		Str("container_no", container).
		Str("email_to", to).
		Str("provider", rec.Provider.DisplayName).
		Int("events", rec.EventCount()).
		Msg("report_delivered")
	return out, nil
}

// SubjectFor returns the subject line for a container report.
func SubjectFor(containerNo string) string {
	return "Container Report - " + containerNo
}

// AttachmentName returns container-{no}-{YYYY-MM-DD}.{ext}.
func AttachmentName(containerNo, ext string, at time.Time) string {
	if ext == "" {
		ext = "pdf"
	}
	return fmt.Sprintf("container-%s-%s.%s", containerNo, at.UTC().Format("2006-01-02"), ext)
}
