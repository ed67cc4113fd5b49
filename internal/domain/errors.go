package domain

import "errors"

var (
	// ErrNotFound is returned when no article exists for a link. It is an outcome, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrStoreDisabled is returned by store-backed paths when the record store was not configured.
	ErrStoreDisabled = errors.New("record store disabled")

	// ErrValidation marks a request that is missing a required identifier.
	ErrValidation = errors.New("validation failed")
)
