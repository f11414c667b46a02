package core

import (
	"errors"
	"fmt"
)

// Structural errors: the file cannot be read as a table at all.
var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrTooFewColumns     = errors.New("too few columns")
	ErrMalformedRecords  = errors.New("malformed records")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Run errors raised before any file is read.
var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrTableBusy     = errors.New("an import is already running for this table")
	ErrFileTooLarge  = errors.New("file too large")
	ErrInvalidOption = errors.New("invalid import option")
)

// minColumns is the fewest distinct columns a delimited header may have.
const minColumns = 3

// StructuralError reports why a whole file was rejected.
type StructuralError struct {
	File string
	Err  error
	// Detail is extra context such as the detected column count.
	Detail string
}

func (e *StructuralError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.File != "" {
		return e.File + ": " + msg
	}
	return msg
}

func (e *StructuralError) Unwrap() error { return e.Err }

// CommitError reports a failed batch commit. Batches before Batch stay
// committed.
type CommitError struct {
	Table     string
	Batch     int
	Committed int
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit batch %d for %s (after %d committed): %v", e.Batch, e.Table, e.Committed, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// IsStructural reports whether err rejected a whole file before any write.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
