package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the shop has no credential or location yet.
	// It is a normal state, not a failure.
	ErrNotConfigured       = errors.New("booking: no booking provider configured")
	ErrUnsupportedProvider = errors.New("booking: unsupported booking provider")

	ErrUnavailable = errors.New("booking: provider unavailable")
	ErrNotFound    = errors.New("booking: provider resource not found")
	ErrAuth        = errors.New("booking: provider rejected credentials")
)

// ProviderError carries the failing provider and operation alongside one of
// the kind sentinels above. errors.Is matches both the kind and the cause.
type ProviderError struct {
	Provider string
	Op       string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns a short label for metrics and logs.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrUnsupportedProvider):
		return "unsupported"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}
