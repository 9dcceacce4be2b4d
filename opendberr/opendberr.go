// Package opendberr defines OpenDB's error taxonomy.
//
// Every error the core returns is wrapped in an *Error carrying one of the
// Codes below, so callers can branch on failure class with Is without
// depending on sentinel values. A missing key or record is not an error:
// reads report it as a nil value or a false "found" result.
package opendberr

import (
	"errors"
	"fmt"
)

// Code classifies the kind of failure.
type Code int

const (
	// Storage covers backend I/O, lock acquisition, and manifest corruption.
	Storage Code = iota + 1
	// Codec covers malformed encoded bytes on read or an unexpected encode failure.
	Codec
	// Cache is reserved for internal cache invariant violations; should be unreachable.
	Cache
	// Vector covers failures reported by the vector index while records writes
	// or clears an embedding. Dimension mismatches are InvalidInput, and
	// searching an empty index returns no results rather than an error.
	Vector
	// Graph covers separator characters in ids/relations and bucket corruption.
	Graph
	// Transaction covers commit conflicts and use-after-commit.
	Transaction
	// InvalidInput covers empty ids, out-of-range options, and similar caller errors.
	InvalidInput
	// NotFound is used only where the contract distinguishes "missing" from "option=None".
	NotFound
)

func (c Code) String() string {
	switch c {
	case Storage:
		return "storage"
	case Codec:
		return "codec"
	case Cache:
		return "cache"
	case Vector:
		return "vector"
	case Graph:
		return "graph"
	case Transaction:
		return "transaction"
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by the core. Op names the
// failing operation (e.g. "records.Insert"), Code classifies it, and Err
// holds the underlying cause (nil for errors raised directly by the core).
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("opendb: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("opendb: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(code Code, op, msg string) *Error {
	return &Error{Code: code, Op: op, Err: errors.New(msg)}
}

// Wrap constructs an *Error wrapping an existing error. Returns nil if err is nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// Newf constructs an *Error with a formatted message.
func Newf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err is (or wraps) an *Error of the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the Code of err if it is (or wraps) an *Error, and ok=true.
func CodeOf(err error) (code Code, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
