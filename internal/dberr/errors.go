// Package dberr provides the error taxonomy for the core read engine.
// It defines six kinds, each a typed struct wrapping a sentinel so callers
// can branch with errors.Is or errors.As. Not every engine error is one of
// them: some failures (an unknown table name, a malformed record or b-tree
// page found while decoding) are returned as plain fmt errors.
// All six are terminal: none carries retry or recovery semantics, because
// a corrupt page, a bad key, or a feature the engine doesn't implement
// never becomes valid by trying again.
package dberr

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per kind, for errors.Is checks that don't need the
// extra context a typed error carries.
var (
	ErrInvalidDatabase    = errors.New("invalid database")
	ErrCorruptPage        = errors.New("corrupt page")
	ErrCryptoFailure      = errors.New("crypto failure")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrOutOfRange         = errors.New("out of range")
	ErrInvalidState       = errors.New("invalid state")
)

// InvalidDatabaseError reports that the file opened is not recognizable
// as a database at all: bad magic, an unparseable header, or a page size
// that isn't a valid power of two.
type InvalidDatabaseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidDatabaseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid database %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid database: %s", e.Reason)
}

func (e *InvalidDatabaseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidDatabase
}

// CorruptPageError reports that a specific page failed a structural check
// (header fields that don't fit the page, a cell pointer array that runs
// past free space, an overflow chain that cycles).
type CorruptPageError struct {
	Page   uint32
	Reason string
	Err    error
}

func (e *CorruptPageError) Error() string {
	return fmt.Sprintf("corrupt page %d: %s", e.Page, e.Reason)
}

func (e *CorruptPageError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCorruptPage
}

// CryptoFailureError reports that the configured encryption key failed to
// authenticate the database: a bad key-verification hash on open, or an
// AEAD tag mismatch while decrypting a page.
type CryptoFailureError struct {
	Page   uint32 // 0 if the failure was during the open-time key check
	Reason string
	Err    error
}

func (e *CryptoFailureError) Error() string {
	if e.Page != 0 {
		return fmt.Sprintf("crypto failure on page %d: %s", e.Page, e.Reason)
	}
	return fmt.Sprintf("crypto failure: %s", e.Reason)
}

func (e *CryptoFailureError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCryptoFailure
}

// UnsupportedFeatureError reports a database that is structurally valid
// but exercises a feature this engine deliberately does not implement
// (a collation other than BINARY on an index key it must compare, a
// text encoding it wasn't opened to expect, a page format it can't
// transform).
type UnsupportedFeatureError struct {
	Feature string
	Err     error
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported feature: %s", e.Feature)
}

func (e *UnsupportedFeatureError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupportedFeature
}

// OutOfRangeError reports a caller-supplied index or offset outside the
// bounds the engine can service: a column index past NumColumns, a page
// number past page_count.
type OutOfRangeError struct {
	What  string
	Value int64
	Bound int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d out of range (bound %d)", e.What, e.Value, e.Bound)
}

func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}

// InvalidStateError reports that an operation was attempted against a
// handle or cursor that is not in a state that permits it: a column
// accessor called before move_next, a cursor used after close.
type InvalidStateError struct {
	Operation string
	State     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: cannot %s while %s", e.Operation, e.State)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// Is reports whether err matches target anywhere in its Unwrap chain.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain assignable to target.
func As(err error, target interface{}) bool { return errors.As(err, target) }
