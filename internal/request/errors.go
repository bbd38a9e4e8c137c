package request

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"agency/internal/status"
)

var ErrNotFound = errors.New("service request not found")

// ValidationError lists field-level problems with caller input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// TransitionError rejects a status change that CanTransition disallows.
type TransitionError struct {
	From status.Admin
	To   status.Admin
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move request from %s to %s", e.From, e.To)
}

// DataError wraps a failure of the underlying data access layer.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *DataError) Unwrap() error { return e.Err }

// wrapData leaves domain errors untouched and types everything else as a DataError.
func wrapData(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var te *TransitionError
	var de *DataError
	if errors.Is(err, ErrNotFound) || errors.As(err, &ve) || errors.As(err, &te) || errors.As(err, &de) {
		return err
	}
	return &DataError{Op: op, Err: err}
}
