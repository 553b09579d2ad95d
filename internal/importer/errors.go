package importer

import (
	"errors"
	"fmt"

	"github.com/fintrack-dev/fintrack/internal/model"
)

var (
	// ErrEmptyInput means the upload had no non-blank lines.
	ErrEmptyInput = errors.New("input contains no data lines")
	// ErrBusy is returned when a session is asked to do anything while it commits.
	ErrBusy = errors.New("import session is committing")
	// ErrImportInProgress means the user already has a batch being committed.
	ErrImportInProgress = errors.New("another import is being committed for this user")
	// ErrSessionNotFound is returned by Service lookups for unknown session IDs.
	ErrSessionNotFound = errors.New("import session not found")
	// ErrUnknownAccount means the target account does not exist.
	ErrUnknownAccount = errors.New("unknown account")
)

// ParseError describes a row that was skipped. Row is the zero-based data
// row offset, Line the one-based line in the uploaded file.
type ParseError struct {
	Row    int
	Line   int
	Column string
	Reason string
}

func (e ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %s", e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// MappingErrorKind classifies a rejected field mapping.
type MappingErrorKind int

const (
	MissingRequired MappingErrorKind = iota + 1
	AmbiguousAmount
	UnknownColumn
	DuplicateColumn
	InvalidSign
)

func (k MappingErrorKind) String() string {
	switch k {
	case MissingRequired:
		return "missing required field"
	case AmbiguousAmount:
		return "ambiguous amount"
	case UnknownColumn:
		return "unknown column"
	case DuplicateColumn:
		return "column mapped twice"
	case InvalidSign:
		return "invalid sign convention"
	}
	return "invalid mapping"
}

// MappingError blocks progression to preview until the user fixes the mapping.
type MappingError struct {
	Kind   MappingErrorKind
	Field  model.Field
	Column string
}

func (e *MappingError) Error() string {
	switch e.Kind {
	case MissingRequired:
		return fmt.Sprintf("mapping: %s %q", e.Kind, e.Field)
	case AmbiguousAmount:
		return "mapping: map either an amount column or both debit and credit columns"
	case UnknownColumn, DuplicateColumn:
		return fmt.Sprintf("mapping: %s %q for field %q", e.Kind, e.Column, e.Field)
	}
	return fmt.Sprintf("mapping: %s", e.Kind)
}

// CommitError wraps a persistence failure. The whole batch is treated as
// not written.
type CommitError struct {
	BatchID string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("committing batch %s: %v", e.BatchID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// StateError reports an operation attempted in the wrong session state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while session is in %s", e.Op, e.State)
}
