package performance

import "errors"

var (
	// ErrDisabled is returned by every entry point when performance tracking is switched off
	ErrDisabled = errors.New("performance tracking disabled")

	// ErrInvalidHorizon is returned when a horizon is not one of the configured values
	ErrInvalidHorizon = errors.New("unsupported horizon")

	// ErrInvalidFilter is returned for malformed listing filters or date ranges
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidUser is returned when no user id is supplied
	ErrInvalidUser = errors.New("user id is required")
)
