package domain

import "errors"

// Error taxonomy. Callers wrap these with fmt.Errorf("%w: ...") and test with
// errors.Is.
var (
	// ErrConfig means required configuration, such as API credentials, is
	// missing. Raised before any network call.
	ErrConfig = errors.New("configuration error")

	// ErrAuth means the credential exchange was rejected or returned no token.
	ErrAuth = errors.New("authentication failed")

	// ErrUpstream means a search call failed, timed out, or returned a
	// non-success status.
	ErrUpstream = errors.New("upstream request failed")

	// ErrPersistence means a single listing could not be stored.
	ErrPersistence = errors.New("persistence failed")

	// ErrInvalidInput means the caller supplied an unusable query.
	ErrInvalidInput = errors.New("invalid input")
)
