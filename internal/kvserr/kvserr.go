// Package kvserr defines the error taxonomy the storage engine surfaces to
// its callers: KeyNotFound, Corrupt, Io, and (at the network boundary only)
// Protocol. Callers are expected to use errors.Is/errors.As rather than
// string matching, so every engine-level failure is wrapped in *Error.
package kvserr

import (
	"errors"
	"fmt"
)

// Kind categorizes an engine failure the way spec section 7 describes it.
type Kind int

const (
	// Io covers any underlying I/O failure: open, read, write, flush,
	// rename, remove.
	Io Kind = iota
	// KeyNotFound is returned when the key is absent: by Remove, and by
	// the engine's Get, which front ends turn back into a plain miss.
	KeyNotFound
	// Corrupt is raised during log replay when the log is structurally
	// invalid: a truncated record, or a Remove for a key with no prior Set.
	Corrupt
	// Protocol is reserved for the network boundary (client/server); the
	// engine itself never returns it.
	Protocol
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case KeyNotFound:
		return "key not found"
	case Corrupt:
		return "corrupt"
	case Protocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is the concrete error type the engine returns. It wraps an optional
// underlying cause so errors.Unwrap, errors.Is, and errors.As all work.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New creates an Error with a message and no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving it as the cause.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: err.Error(), Err: err}
}

func (e *Error) Error() string {
	return e.Msg
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
