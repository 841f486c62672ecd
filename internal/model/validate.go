package model

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateFence checks a Fence for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the fence is valid.
func ValidateFence(f *Fence) error {
	var ve ValidationError

	if strings.TrimSpace(f.SessionID) == "" {
		ve.add("sessionId", "is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		ve.add("name", "is required")
	}
	if f.Type != FenceTypeInclusion {
		ve.add("type", "invalid value %q", f.Type)
	}

	if math.IsNaN(f.Lat) || f.Lat < -90 || f.Lat > 90 {
		ve.add("lat", "must be between -90 and 90, got %v", f.Lat)
	}
	if math.IsNaN(f.Lng) || f.Lng < -180 || f.Lng > 180 {
		ve.add("lng", "must be between -180 and 180, got %v", f.Lng)
	}

	// Radius must be strictly positive; NaN fails the comparison too.
	if !(f.Radius > 0) || math.IsInf(f.Radius, 1) {
		ve.add("radius", "must be greater than 0, got %v", f.Radius)
	}

	for i, r := range f.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if !r.Condition.IsValid() {
			ve.add(field+".condition", "invalid value %q", r.Condition)
		}
		if !r.Action.IsValid() {
			ve.add(field+".action", "invalid value %q", r.Action)
		}
		if strings.TrimSpace(r.Message) == "" {
			ve.add(field+".message", "is required")
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
