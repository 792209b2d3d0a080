// Package validation provides common validation utilities for the sinkflow library.
package validation

import (
	"math"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return gferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegativeInt validates that an integer value is non-negative (>= 0).
func ValidateNonNegativeInt(module, field string, value int) error {
	if value < 0 {
		return gferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateNonNegative validates that a numeric value is a number and non-negative (>= 0).
// NaN is rejected because every comparison against it is false.
func ValidateNonNegative(module, field string, value float64) error {
	if math.IsNaN(value) {
		return gferrors.NewValidationError(module, field, value, "must be a number")
	}
	if value < 0 {
		return gferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateFiniteNonNegative validates that a value is finite and non-negative.
// Infinite values are rejected in addition to everything ValidateNonNegative rejects.
func ValidateFiniteNonNegative(module, field string, value float64) error {
	if math.IsInf(value, 0) {
		return gferrors.NewValidationError(module, field, value, "must be finite")
	}
	return ValidateNonNegative(module, field, value)
}

// ValidateNotNil validates that an interface value is not nil.
// Returns a ValidationError if the value is nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil {
		return gferrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return gferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidateOneOf validates that value is one of the allowed choices.
func ValidateOneOf(module, field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return gferrors.NewValidationError(module, field, value, "unsupported value")
}
