package deck

import (
	"errors"
	"fmt"
	"io/fs"
)

// NoDocumentLoadedError is returned when an operation that needs a loaded
// presentation is called on an empty engine.
type NoDocumentLoadedError struct {
	Operation string
}

func (e *NoDocumentLoadedError) Error() string {
	return fmt.Sprintf("no document loaded: cannot %s before Load or CreateBlank", e.Operation)
}

// NewNoDocumentLoadedError creates a precondition error for the named operation.
func NewNoDocumentLoadedError(operation string) error {
	return &NoDocumentLoadedError{Operation: operation}
}

// ParseError reports a template file that is not a well-formed presentation.
type ParseError struct {
	Part  string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Part != "" && e.Cause != nil {
		return fmt.Sprintf("parse error in %s: %v", e.Part, e.Cause)
	}
	if e.Part != "" {
		return fmt.Sprintf("parse error in %s", e.Part)
	}
	return fmt.Sprintf("parse error: %v", e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error for the given package part.
func NewParseError(part string, cause error) error {
	return &ParseError{Part: part, Cause: cause}
}

// DocumentError reports a failure during a document lifecycle operation
// (load, save) against a path.
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("document error during %s of %q: %v", e.Operation, e.Path, e.Cause)
	}
	return fmt.Sprintf("document error during %s: %v", e.Operation, e.Cause)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error.
func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{Operation: operation, Path: path, Cause: cause}
}

// ValueConversionError reports a substitution value that cannot be rendered
// as text. Unmatched placeholders are never an error; a bad value is.
type ValueConversionError struct {
	Name  string
	Value interface{}
}

func (e *ValueConversionError) Error() string {
	return fmt.Sprintf("cannot convert value for placeholder %q to text (type %T)", e.Name, e.Value)
}

// NewValueConversionError creates a conversion error for the named placeholder.
func NewValueConversionError(name string, value interface{}) error {
	return &ValueConversionError{Name: name, Value: value}
}

// IsNoDocumentLoaded checks if an error is a missing-document precondition error.
func IsNoDocumentLoaded(err error) bool {
	_, ok := err.(*NoDocumentLoadedError)
	return ok
}

// IsParseError checks if an error is a parse error.
func IsParseError(err error) bool {
	_, ok := err.(*ParseError)
	return ok
}

// IsDocumentError checks if an error is a document error.
func IsDocumentError(err error) bool {
	_, ok := err.(*DocumentError)
	return ok
}

// IsValueConversionError checks if an error is a value conversion error.
func IsValueConversionError(err error) bool {
	_, ok := err.(*ValueConversionError)
	return ok
}

// IsFileNotFound checks if an error stems from a template path that does
// not exist.
func IsFileNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
