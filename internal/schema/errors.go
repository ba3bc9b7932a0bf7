package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrNotFound is returned when no model is registered under a UID.
	ErrNotFound = errors.New("schema not found")
	// ErrConflict is returned when a UID is registered twice with different shapes.
	ErrConflict = errors.New("conflicting schema registration")
	// ErrFrozen is returned when registering after the registry was frozen.
	ErrFrozen = errors.New("schema registry is frozen")
)

// ValidationError represents a document data validation failure.
type ValidationError struct {
	Model        string `json:"model"`
	Message      string `json:"message"`
	Field        string `json:"field,omitempty"`
	ExpectedType string `json:"expected_type,omitempty"`
	ActualType   string `json:"actual_type,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s (%s)", e.Field, e.Message, e.Model)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Model)
}

// MultiValidationError aggregates multiple validation errors.
type MultiValidationError struct {
	Errors []*ValidationError
}

func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ValidationDetailer surfaces structured validation details for API error responses.
type ValidationDetailer interface {
	Details() map[string]interface{}
}

// Details returns the structured fields from this single validation error.
func (e *ValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

// Details aggregates the failed field names from all child errors.
func (e *MultiValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	var fields []string
	for _, ve := range e.Errors {
		if ve.Field != "" {
			fields = append(fields, ve.Field)
		}
	}
	if len(fields) > 0 {
		d["fields"] = fields
	}
	return d
}

// NewTypeMismatchError creates an error for type mismatches.
func NewTypeMismatchError(model, field, expected, actual string) *ValidationError {
	return &ValidationError{
		Model:        model,
		Message:      fmt.Sprintf("expected %s, got %s", expected, actual),
		Field:        field,
		ExpectedType: expected,
		ActualType:   actual,
	}
}

// NewRequiredFieldError creates an error for missing required fields.
func NewRequiredFieldError(model, field string) *ValidationError {
	return &ValidationError{
		Model:   model,
		Message: "required field is missing",
		Field:   field,
	}
}
