package resolver

import "errors"

// Domain-specific errors for the resolver.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedPayload is returned when a message payload cannot be decoded.
	ErrMalformedPayload = errors.New("resolver: malformed payload")

	// ErrInvalidGroup is returned when a control group definition is incomplete.
	ErrInvalidGroup = errors.New("resolver: invalid control group")

	// ErrDuplicateTopic is returned when a configuration reuses a topic
	// across control group roles.
	ErrDuplicateTopic = errors.New("resolver: duplicate topic in configuration")

	// ErrConflictingFlexibility is returned when a setpoint item declares
	// both discrete and continuous flexibility bounds.
	ErrConflictingFlexibility = errors.New("resolver: acceptable_values and min_value/max_value are mutually exclusive")

	// ErrInvalidRange is returned when a continuous flexibility bound is inverted.
	ErrInvalidRange = errors.New("resolver: min_value must not exceed max_value")
)
