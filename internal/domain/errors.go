package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidConfiguration is returned when a tracking setup is rejected
	ErrInvalidConfiguration = errors.New("invalid tracking configuration")

	// ErrStateNotFound is returned when no tracking state has been saved
	ErrStateNotFound = errors.New("tracking state not found")

	// ErrProductNotFound is returned when a product page no longer lists the product
	ErrProductNotFound = errors.New("product not found")

	// ErrFetchFailed is returned when a product page could not be fetched or parsed
	ErrFetchFailed = errors.New("price fetch failed")

	// ErrSiteUnavailable is returned when a site responds with a non-retryable error
	ErrSiteUnavailable = errors.New("site unavailable")

	// ErrEmailFailed is returned when an email could not be delivered
	ErrEmailFailed = errors.New("email delivery failed")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCandidateNotFound is returned when a selected candidate is unknown or expired
	ErrCandidateNotFound = errors.New("candidate not found")

	// ErrAlreadyTracking is returned when a new selection is committed while tracking runs
	ErrAlreadyTracking = errors.New("tracking already running")

	// ErrNotTracking is returned when an operation needs a tracking session
	ErrNotTracking = errors.New("no tracking session")

	// ErrStopTimeout is reported when the scheduler loop did not drain in time
	ErrStopTimeout = errors.New("scheduler stop timed out")
)
