// Package validation provides common validation utilities for configuration
// parameters across the sinkflow library.
//
// Every validator returns a *errors.ValidationError, so callers can match
// failures with errors.Is(err, errors.ErrInvalidConfiguration) regardless of
// which module produced them.
package validation
