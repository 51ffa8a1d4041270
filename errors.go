package vistream

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers. Match with errors.Is.
var (
	// ErrUnauthenticated means no usable credentials remain after renewal.
	// UIs should route to sign-in.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrForbidden is a server 403; never retried.
	ErrForbidden = errors.New("forbidden")

	// ErrCancelled means the caller aborted the operation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrMalformedToken means the access token could not be decoded. For
	// expiry decisions a malformed token counts as expired; sign-in flows
	// may want to surface it directly.
	ErrMalformedToken = errors.New("malformed token")
)

// APIError is any non-2xx response not covered by a sentinel, or a 2xx
// envelope with success=false. Message carries the server's body.message
// when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// NetworkError is a transport failure with no HTTP status. UIs typically
// surface a retry affordance.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a client-side pre-flight rejection; no request was
// sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
