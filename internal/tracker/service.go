// Package tracker is the single-request entry point: validate, resolve,
// normalize and notify.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/container-tracker/internal/common"
	"github.com/noah-isme/container-tracker/internal/notify"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

var (
	// ErrValidation wraps request validation failures.
	ErrValidation = errors.New("tracker: invalid request")
	// ErrDeliveryFailed means tracking resolved but the report was not delivered.
	ErrDeliveryFailed = errors.New("tracker: report delivery failed")
)

// NotFoundMessage is returned to callers when no provider has data.
const NotFoundMessage = "No tracking information found for this container number"

type resolver interface {
	Resolve(ctx context.Context, req tracking.Request) (tracking.Resolution, error)
}

type normalizer interface {
	Normalize(v tracking.Variant, raw json.RawMessage, containerNo string) (tracking.Record, error)
}

type notifier interface {
	Notify(ctx context.Context, req tracking.Request, rec tracking.Record) (notify.Outcome, error)
}

// Result summarises a completed track-and-notify request.
type Result struct {
	ContainerNo    string `json:"container_no"`
	EmailTo        string `json:"email_to"`
	APIUsed        string `json:"api_used"`
	EventsCount    int    `json:"events_count"`
	TrackingStatus string `json:"tracking_status"`
}

// Service runs one request end to end.
type Service struct {
	Resolver   resolver
	Normalizer normalizer
	Pipeline   notifier
	Validate   *validator.Validate
	// Timeout bounds the whole request; zero disables it.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// TrackAndNotify validates req before any provider is contacted. Returned
// errors are common.AppError values carrying the HTTP status to report.
func (s Service) TrackAndNotify(ctx context.Context, req tracking.Request) (Result, error) {
	req.ContainerNo = strings.TrimSpace(req.ContainerNo)
	req.EmailTo = strings.TrimSpace(req.EmailTo)
	if err := s.validate(req); err != nil {
		return Result{}, err
	}
	if s.Resolver == nil || s.Normalizer == nil || s.Pipeline == nil {
		return Result{}, common.NewAppError("NOT_CONFIGURED", "tracking service not configured", http.StatusInternalServerError, nil)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	logger := s.Logger.With().Str("container_no", req.ContainerNo).Logger()

	res, err := s.Resolver.Resolve(ctx, req)
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			logger.Info().Msg("tracking_not_found")
			return Result{}, common.NewAppError("NOT_FOUND", NotFoundMessage, http.StatusNotFound, err)
		}
		return Result{}, common.NewAppError("TRACKING_FAILED", "failed to resolve tracking information", http.StatusInternalServerError, err)
	}

	rec, err := s.Normalizer.Normalize(res.Variant, res.Raw, req.ContainerNo)
	if err != nil {
		return Result{}, common.NewAppError("NORMALIZE_FAILED", "failed to process tracking data", http.StatusInternalServerError, err)
	}

	result := Result{
		ContainerNo:    req.ContainerNo,
		EmailTo:        req.EmailTo,
		APIUsed:        rec.Provider.DisplayName,
		EventsCount:    rec.EventCount(),
		TrackingStatus: rec.Status,
	}

	outcome, err := s.Pipeline.Notify(ctx, req, rec)
	if err != nil {
		status := http.StatusInternalServerError
		code := "REPORT_FAILED"
		if errors.Is(err, notify.ErrPrecondition) {
			status, code = http.StatusBadRequest, "VALIDATION_ERROR"
		}
		return Result{}, common.NewAppError(code, "failed to generate tracking report", status, err)
	}
	if !outcome.Success {
		appErr := common.NewAppError("DELIVERY_FAILED", "tracking resolved but the report could not be delivered",
			http.StatusBadGateway, fmt.Errorf("%w: %v", ErrDeliveryFailed, outcome.Err))
		appErr.Details = result
		return result, appErr
	}

	logger.Info().Str("provider", result.APIUsed).Int("events", result.EventsCount).Msg("track_and_notify_completed")
	return result, nil
}

func (s Service) validate(req tracking.Request) error {
	v := s.Validate
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(req); err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fieldName(fe.Field()))
			}
		}
		appErr := common.NewAppError("VALIDATION_ERROR", "container_no and a valid email_to are required",
			http.StatusBadRequest, fmt.Errorf("%w: %v", ErrValidation, err))
		if len(fields) > 0 {
			appErr.Details = map[string]any{"fields": fields}
		}
		return appErr
	}
	return nil
}

func fieldName(goName string) string {
	switch goName {
	case "ContainerNo":
		return "container_no"
	case "EmailTo":
		return "email_to"
	default:
		return strings.ToLower(goName)
	}
}
