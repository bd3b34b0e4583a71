package domain

import (
	"context"
	"errors"
	"fmt"
)

// Geocode error sentinels used by clients so the resolver can classify
// failures without depending on a concrete HTTP adapter.
var (
	// ErrMalformed marks an upstream response body that could not be decoded.
	ErrMalformed = errors.New("malformed geocoder response")

	// ErrUpstream marks a non-success HTTP status from the geocoder.
	ErrUpstream = errors.New("geocoder upstream error")
)

// FailureReason classifies why a geocode resolution produced no name.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureTimeout
	FailureNetwork
	FailureMalformed
	FailureNoCoordinates
	FailureUnknown
)

func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureNetwork:
		return "network error"
	case FailureMalformed:
		return "malformed response"
	case FailureNoCoordinates:
		return "coordinates missing"
	default:
		return "unknown error"
	}
}

// Resolution is the outcome of a reverse-geocode attempt: a resolved place
// name or a typed failure reason. Placeholder text for failures is rendered
// at the presentation boundary via PlaceName, not embedded in resolution
// logic.
type Resolution struct {
	Name      string
	Failure   FailureReason
	FromCache bool
}

// Resolved returns a successful Resolution.
func Resolved(name string) Resolution {
	return Resolution{Name: name}
}

// Unresolved returns a failed Resolution with the given reason.
func Unresolved(reason FailureReason) Resolution {
	return Resolution{Failure: reason}
}

// OK reports whether a place name was resolved.
func (r Resolution) OK() bool {
	return r.Failure == FailureNone
}

// PlaceName returns the resolved name, or a placeholder embedding the
// coordinates and failure category when resolution failed. The pipeline
// can always proceed to persistence with this value.
func (r Resolution) PlaceName(lat, lon float64) string {
	if r.Failure == FailureNone {
		return r.Name
	}
	if r.Failure == FailureNoCoordinates {
		return "place unavailable (coordinates missing)"
	}
	return fmt.Sprintf("place unavailable (%s: %g, %g)", r.Failure, lat, lon)
}

// Resolver turns a coordinate pair into a place name. Implementations
// never fail: every error condition degrades to a typed failure so the
// ingestion pipeline can always persist the record.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) Resolution
}
