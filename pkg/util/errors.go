// Package util provides logging helpers and common error types.
package util

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for caller and configuration defects
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrConfiguration    = errors.New("configuration error")
	ErrDeviceLocked     = errors.New("device locked by another session")
)

// ValidationError represents one or more validation failures
type ValidationError struct {
	Field  string
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// NewFieldValidationError creates a validation error bound to a request field
func NewFieldValidationError(field string, messages ...string) *ValidationError {
	return &ValidationError{Field: field, Errors: messages}
}

// FieldErrors accumulates per-field validation failures
type FieldErrors map[string][]string

// Add records message for field if condition is false
func (f FieldErrors) Add(condition bool, field, message string) FieldErrors {
	if !condition {
		f[field] = append(f[field], message)
	}
	return f
}

// AddErrorf records a formatted message for field unconditionally
func (f FieldErrors) AddErrorf(field, format string, args ...interface{}) FieldErrors {
	f[field] = append(f[field], fmt.Sprintf(format, args...))
	return f
}

// HasErrors returns true if any field failed
func (f FieldErrors) HasErrors() bool {
	return len(f) > 0
}

// Build returns a FieldValidationError or nil if nothing failed
func (f FieldErrors) Build() error {
	if !f.HasErrors() {
		return nil
	}
	return &FieldValidationError{Fields: f}
}

// FieldValidationError carries validation failures keyed by field name.
type FieldValidationError struct {
	Fields FieldErrors
}

func (e *FieldValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *FieldValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ConfigurationError reports a missing or unusable process setting
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigurationError creates a configuration error for setting
func NewConfigurationError(setting, reason string) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Reason: reason}
}
