package gemini

import "errors"

// Common errors returned by the enricher.
var (
	// ErrInvalidConfig indicates the enricher configuration is unusable.
	ErrInvalidConfig = errors.New("invalid enricher configuration")

	// ErrInvalidResponse indicates the model returned something that is
	// not the expected JSON array.
	ErrInvalidResponse = errors.New("invalid model response")

	// ErrContentBlocked indicates the model refused the request on
	// safety grounds. Permanent for the given input.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrTransientFailure indicates a retryable API failure that
	// persisted through all retry attempts.
	ErrTransientFailure = errors.New("transient API failure")
)
