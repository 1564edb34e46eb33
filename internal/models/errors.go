package models

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindFetch  Kind = "fetch"
	KindParse  Kind = "parse"
	KindRender Kind = "render"
)

// Sentinels for errors.Is checks by kind.
var (
	ErrFetch  = &Error{Kind: KindFetch}
	ErrParse  = &Error{Kind: KindParse}
	ErrRender = &Error{Kind: KindRender}
)

// Error is a classified pipeline error. Row is 1-based and only set for per-row
// parse failures (the header is row 1).
type Error struct {
	Kind    Kind
	Op      string
	Row     int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NewFetchError wraps cause as a fetch failure.
func NewFetchError(op, message string, cause error) *Error {
	return &Error{Kind: KindFetch, Op: op, Message: message, Cause: cause}
}

// NewParseError wraps cause as a parse failure.
func NewParseError(op, message string, cause error) *Error {
	return &Error{Kind: KindParse, Op: op, Message: message, Cause: cause}
}

// NewRowError reports a parse failure for a specific row.
func NewRowError(op string, row int, message string, cause error) *Error {
	return &Error{Kind: KindParse, Op: op, Row: row, Message: message, Cause: cause}
}

// NewRenderError wraps cause as a render failure.
func NewRenderError(op, message string, cause error) *Error {
	return &Error{Kind: KindRender, Op: op, Message: message, Cause: cause}
}

func IsFetch(err error) bool  { return errors.Is(err, ErrFetch) }
func IsParse(err error) bool  { return errors.Is(err, ErrParse) }
func IsRender(err error) bool { return errors.Is(err, ErrRender) }

// KindOf returns the kind of the first classified error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
