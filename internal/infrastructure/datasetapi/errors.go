package datasetapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DecodeError is returned when a response body is not the JSON shape the
// operation expects: malformed JSON, a mistyped field, or a missing one.
type DecodeError struct {
	Path  string
	Shape string
	Err   error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s from %s: %v", e.Shape, e.Path, e.Err)
}

// Unwrap returns the underlying cause
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// idMismatch reports a record that answers for another entity than requested.
func idMismatch(field string, requested, got int) error {
	return fmt.Errorf("field %q is %d, requested %d", field, got, requested)
}

// describeValidation flattens validator errors into one readable message
// naming the offending JSON fields.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("missing field %q", jsonName(fe)))
		default:
			parts = append(parts, fmt.Sprintf("field %q failed %s", jsonName(fe), fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

// jsonName maps a struct field error back to its wire key.
func jsonName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.StructField()
	}
	return name
}
