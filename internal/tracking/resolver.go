package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/container-tracker/internal/audit"
	"github.com/noah-isme/container-tracker/internal/obs"
)

// EndpointSource maps a provider id to its endpoint template. ok is false
// when the provider has no endpoint configured.
type EndpointSource interface {
	Endpoint(ctx context.Context, providerID string) (endpoint string, ok bool, err error)
}

// AttemptRecorder appends attempt log entries.
type AttemptRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Resolution is the first provider response that passed its predicate.
type Resolution struct {
	Descriptor Descriptor
	Variant    Variant
	Raw        json.RawMessage
}

// Resolver walks the provider chain in priority order and stops at the
// first provider whose payload carries events. Attempts are sequential.
type Resolver struct {
	Variants  []Variant
	Endpoints EndpointSource
	Fetcher   Fetcher
	Attempts  AttemptRecorder
	// Timeout bounds each provider call; zero means no extra bound.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Resolve returns the winning provider's raw payload or ErrNotFound. Each
// attempted provider gets exactly one attempt entry, written before the
// next provider is tried. Providers without an endpoint are skipped
// without an entry.
func (r Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	if r.Endpoints == nil || r.Fetcher == nil {
		return Resolution{}, errors.New("tracking: resolver not configured")
	}
	variants := r.Variants
	if len(variants) == 0 {
		variants = DefaultVariants()
	}

	ctx, span := otel.Tracer("tracking.resolver").Start(ctx, "tracking.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("container_no", req.ContainerNo))

	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		desc := v.Descriptor()
		endpoint, ok, err := r.Endpoints.Endpoint(ctx, desc.ID)
		if err != nil {
			err = &ProviderError{Provider: desc.ID, Class: ClassRegistry, Err: err}
			r.recordAttempt(ctx, req, desc, err)
			continue
		}
		if !ok || endpoint == "" {
			r.Logger.Debug().Str("provider", desc.ID).Msg("provider_skipped_no_endpoint")
			continue
		}

		raw, err := r.attempt(ctx, v, endpoint, req.ContainerNo)
		r.recordAttempt(ctx, req, desc, err)
		if err != nil {
			continue
		}
		obs.IncCounter(obs.ResolutionsTotal, "found")
		span.SetAttributes(attribute.String("provider", desc.ID))
		return Resolution{Descriptor: desc, Variant: v, Raw: raw}, nil
	}

	obs.IncCounter(obs.ResolutionsTotal, "not_found")
	span.SetStatus(codes.Error, "no provider returned data")
	return Resolution{}, ErrNotFound
}

func (r Resolver) attempt(ctx context.Context, v Variant, endpoint, containerNo string) (json.RawMessage, error) {
	desc := v.Descriptor()
	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := r.Fetcher.Fetch(callCtx, desc.ID, v.BuildRequestURL(endpoint, containerNo), containerNo)
	if obs.ProviderAttemptLatency != nil {
		obs.ProviderAttemptLatency.WithLabelValues(desc.ID).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		return nil, err
	}

	payload, err := v.Decode(raw)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, err
		}
		return nil, &ProviderError{Provider: desc.ID, Class: ClassDecode, Err: err}
	}
	if !payload.HasEvents() {
		return nil, ErrNoData
	}
	return raw, nil
}

func (r Resolver) recordAttempt(ctx context.Context, req Request, desc Descriptor, attemptErr error) {
	entry := audit.Entry{
		RequesterID:   req.RequesterID,
		ContainerNo:   req.ContainerNo,
		ProviderLabel: desc.DisplayName,
		Outcome:       audit.OutcomeSuccess,
		CallerIP:      req.CallerIP,
	}
	if attemptErr != nil {
		entry.Outcome = audit.OutcomeFailure
		entry.Error = audit.ErrorText(attemptErr)
		obs.IncCounter(obs.ProviderAttemptsTotal, desc.ID, ClassOf(attemptErr))
		r.Logger.Warn().Err(attemptErr).
			Str("provider", desc.ID).
			Str("container_no", req.ContainerNo).
			Str("class", ClassOf(attemptErr)).
			Msg("provider_attempt_failed")
	} else {
		obs.IncCounter(obs.ProviderAttemptsTotal, desc.ID, "success")
		r.Logger.Info().
			Str("provider", desc.ID).
			Str("container_no", req.ContainerNo).
			Msg("provider_attempt_succeeded")
	}
	if r.Attempts == nil {
		return
	}
	if err := r.Attempts.Record(ctx, entry); err != nil {
		r.Logger.Error().Err(err).Str("provider", desc.ID).Str("container_no", req.ContainerNo).Msg("attempt_log_write_failed")
	}
}
