package blog

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

var (
	ErrPostNotFound = errors.New("blog post not found")
	ErrSlugConflict = errors.New("slug already taken")
)

// FieldError describes a single invalid field of a write request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldErr(field, format string, args ...any) error {
	return &FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationError carries every failing field of a rejected write, not only the first one.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// HasField reports whether the given field failed validation.
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// toValidationError folds a multierr chain of field errors into a single *ValidationError.
// Errors that are not field errors are kept under the "request" field.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	ve := &ValidationError{}
	for _, e := range multierr.Errors(err) {
		var fe *FieldError
		if errors.As(e, &fe) {
			ve.Fields = append(ve.Fields, *fe)
			continue
		}
		ve.Fields = append(ve.Fields, FieldError{Field: "request", Message: e.Error()})
	}
	return ve
}
