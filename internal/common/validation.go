package common

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator collects rule violations across several fields.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns a combined error, or nil when every rule passed.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return errors.New(v.ErrorMessage())
}

func (v *Validator) ErrorMessage() string {
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value any) *ValidationError

func Required(fieldName string, value any) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	return nil
}

// OneOf accepts only the listed string values.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		s, _ := value.(string)
		if slices.Contains(allowed, s) {
			return nil
		}
		return &ValidationError{
			Field:   fieldName,
			Value:   value,
			Message: "must be one of " + strings.Join(allowed, ", "),
		}
	}
}

func Positive(fieldName string, value any) *ValidationError {
	n, ok := value.(int)
	if !ok || n <= 0 {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a positive integer"}
	}
	return nil
}

// Between checks an int against inclusive bounds.
func Between(min, max int) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		n, ok := value.(int)
		if !ok || n < min || n > max {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("must be between %d and %d", min, max),
			}
		}
		return nil
	}
}

func Timezone(fieldName string, value any) *ValidationError {
	s, _ := value.(string)
	if _, err := time.LoadLocation(s); err != nil || s == "" {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be an IANA time zone"}
	}
	return nil
}
