package domain

import "errors"

var (
	// ErrNotFound means the entity is absent after every tier was consulted.
	ErrNotFound = errors.New("not found")

	// ErrProviderUnavailable wraps network, auth and rate limit failures of an outbound provider call.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrUnrecognizedService is returned when no adapter is registered for a service name.
	ErrUnrecognizedService = errors.New("unrecognized service")

	// ErrStoreUnavailable means the durable store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConditionFailed is returned by conditional writes whose predicate did not hold.
	ErrConditionFailed = errors.New("condition failed")

	// ErrMissingOwner is returned when an operation is called without an owner id.
	ErrMissingOwner = errors.New("missing required owner id")
)
