package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTest is returned for a test identifier outside the known panels
var ErrUnknownTest = errors.New("Unknown lab test")

// MissingFieldError reports required inputs absent from a measurement set
type MissingFieldError struct {
	Kind   TestKind
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field(s): %s", e.Kind, strings.Join(e.Fields, ", "))
}

// TypeMismatchError reports an input whose value has the wrong type
type TypeMismatchError struct {
	Kind  TestKind
	Field string
	Want  ValueType
	Got   any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: field %q must be a %s, got %T", e.Kind, e.Field, e.Want, e.Got)
}
