package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/container-tracker/internal/common"
)

// Outcome is the single-letter result stored for each provider attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "S"
	OutcomeFailure Outcome = "F"
)

const (
	// SystemRequester is stored when no requester id was supplied.
	SystemRequester = "system"
	// SystemLocation is the ip_location stored for every attempt.
	SystemLocation = "System"
)

// Entry is one provider attempt. Entries are append-only.
type Entry struct {
	ID            int64     `json:"id,omitempty"`
	RequesterID   string    `json:"requester_id"`
	Timestamp     time.Time `json:"timestamp"`
	ContainerNo   string    `json:"container_no"`
	ProviderLabel string    `json:"provider_label"`
	Outcome       Outcome   `json:"outcome"`
	Error         *string   `json:"error,omitempty"`
	CallerIP      string    `json:"caller_ip"`
	IPLocation    string    `json:"ip_location"`
}

// ListFilter narrows a List query.
type ListFilter struct {
	ContainerNo string
	Limit       int
	Offset      int
}

// Store persists attempt entries.
type Store interface {
	InsertAttempt(ctx context.Context, e Entry) error
	ListAttempts(ctx context.Context, f ListFilter) ([]Entry, error)
}

// Service normalises entries before handing them to the store. It is safe
// for concurrent use when the store is.
type Service struct {
	Store Store
	Now   func() time.Time
}

// Record appends one attempt entry.
func (s Service) Record(ctx context.Context, e Entry) error {
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	if e.Outcome != OutcomeSuccess && e.Outcome != OutcomeFailure {
		return errors.New("audit: outcome must be S or F")
	}
	e.RequesterID = valueOr(e.RequesterID, SystemRequester)
	e.CallerIP = valueOr(e.CallerIP, common.LoopbackIP)
	e.IPLocation = valueOr(e.IPLocation, SystemLocation)
	e.ContainerNo = strings.TrimSpace(e.ContainerNo)
	e.ProviderLabel = strings.TrimSpace(e.ProviderLabel)
	e.Error = sanitizeString(e.Error)
	if e.Outcome == OutcomeSuccess {
		e.Error = nil
	}
	if e.Timestamp.IsZero() {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		e.Timestamp = now().UTC()
	}
	return s.Store.InsertAttempt(ctx, e)
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func sanitizeString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ErrorText returns a pointer suitable for Entry.Error.
func ErrorText(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
