package models

import "errors"

var (
	// ErrMissingData marks a required series that has no value for a needed date.
	ErrMissingData = errors.New("missing data")
	// ErrDegenerateNormalization is returned when a template has no risk-sleeve weight to rescale.
	ErrDegenerateNormalization = errors.New("degenerate normalization: risk sleeve sums to zero")
	// ErrFeedUnavailable is returned by optional feeds that cannot serve data.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrInsufficientHistory means there are fewer observations than the confirmation window.
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInvalidWeights      = errors.New("invalid weights")
	ErrInvalidConfig       = errors.New("invalid configuration")
)
