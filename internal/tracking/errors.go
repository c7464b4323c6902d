package tracking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means every configured provider was tried without usable data.
	ErrNotFound = errors.New("tracking: no tracking information found")
	// ErrNoData means a provider answered but its payload held no events.
	ErrNoData = errors.New("tracking: provider returned no events")
)

// ErrorClass groups provider failures for logging and metrics.
type ErrorClass string

const (
	ClassNetwork  ErrorClass = "network"
	ClassStatus   ErrorClass = "status"
	ClassDecode   ErrorClass = "decode"
	ClassRegistry ErrorClass = "registry"
)

// ProviderError describes why a single provider attempt failed.
type ProviderError struct {
	Provider   string
	Class      ErrorClass
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: %s (status %d): %v", e.Provider, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ClassOf extracts the failure class of err. Payloads without events are
// reported as "no_data".
func ClassOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return string(pe.Class)
	}
	if errors.Is(err, ErrNoData) {
		return "no_data"
	}
	return "unknown"
}
