// Package errs holds the warehouse error taxonomy shared by the importer, classifier and exporter.
package errs

import (
	"errors"
	"fmt"
)

// MalformedSource marks an unreadable or invalid input file. The file is skipped and its unit continues.
type MalformedSource struct {
	Path   string
	reason error
}

func NewMalformedSource(path string, reason error) MalformedSource {
	return MalformedSource{Path: path, reason: reason}
}

func (e MalformedSource) Error() string {
	return fmt.Sprintf("malformed source %s: %v", e.Path, e.reason)
}

func (e MalformedSource) Unwrap() error {
	return e.reason
}

func IsMalformedSource(err error) bool {
	var ms MalformedSource
	return errors.As(err, &ms)
}

// IntegrityFailure is a uniqueness conflict that did not resolve after the single retry.
type IntegrityFailure struct {
	Entity string
	reason error
}

func NewIntegrityFailure(entity string, reason error) IntegrityFailure {
	return IntegrityFailure{Entity: entity, reason: reason}
}

func (e IntegrityFailure) Error() string {
	return fmt.Sprintf("integrity failure on %s: %v", e.Entity, e.reason)
}

func (e IntegrityFailure) Unwrap() error {
	return e.reason
}

func IsIntegrityFailure(err error) bool {
	var inf IntegrityFailure
	return errors.As(err, &inf)
}

// ValidationFailure is a non-uniqueness constraint or data violation. Never retried.
type ValidationFailure struct {
	Entity string
	reason error
}

func NewValidationFailure(entity string, reason error) ValidationFailure {
	return ValidationFailure{Entity: entity, reason: reason}
}

func (e ValidationFailure) Error() string {
	return fmt.Sprintf("validation failure on %s: %v", e.Entity, e.reason)
}

func (e ValidationFailure) Unwrap() error {
	return e.reason
}

func IsValidationFailure(err error) bool {
	var vf ValidationFailure
	return errors.As(err, &vf)
}

type ConfigurationError struct {
	reason error
}

func NewConfigurationError(reason error) ConfigurationError {
	return ConfigurationError{reason: reason}
}

func (e ConfigurationError) Error() string {
	return "configuration error: " + e.reason.Error()
}

func (e ConfigurationError) Unwrap() error {
	return e.reason
}

func IsConfigurationError(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}
