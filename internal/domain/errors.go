package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientData    = errors.New("insufficient data")
	ErrNoModel             = errors.New("no trained model for device")
	ErrServiceUnavailable  = errors.New("model service unavailable")
	ErrDetectionInProgress = errors.New("anomaly detection already running for device")

	// ErrDeviceUnowned is returned by the ownership gate for devices nobody
	// has claimed yet. It is a Forbidden error.
	ErrDeviceUnowned = fmt.Errorf("device has no owner: %w", ErrForbidden)
)

// ValidationError describes a malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientDataError is returned when a statistical precondition is unmet.
type InsufficientDataError struct {
	DeviceID string
	Have     int64
	Need     int64
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for device %s: have %d points, need %d", e.DeviceID, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// ServiceError wraps a failure talking to the external model service.
// A timeout is a ServiceError, never an empty success.
type ServiceError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model service %s failed with status %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model service %s failed: %v", e.Operation, e.Err)
}

func (e *ServiceError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Err}
}

// IOError means the input stream could not be opened or read at all.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
