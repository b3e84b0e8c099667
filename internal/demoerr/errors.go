// Package demoerr defines the error kinds of spec.md §7: ConfigError,
// InputError, GridError, IoError and InternalError. Each wraps an
// underlying cause with %w, following the teacher's fmt.Errorf("...: %w", ...)
// idiom throughout internal/cog/reader.go and internal/pmtiles/writer.go.
package demoerr

import "fmt"

// Kind categorizes an error for exit-code / diagnostic purposes.
type Kind int

const (
	// KindConfig covers invalid or conflicting CLI/grid options.
	KindConfig Kind = iota
	// KindInput covers a missing file, unreadable georef, or empty input set.
	KindInput
	// KindGrid covers an empty output box or single-file output needing >1 tile.
	KindGrid
	// KindIO covers a read or write failure.
	KindIO
	// KindInternal covers a violated invariant.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindInput:
		return "InputError"
	case KindGrid:
		return "GridError"
	case KindIO:
		return "IoError"
	case KindInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Error is a typed error carrying one of the Kind values above.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Config constructs a ConfigError.
func Config(format string, args ...any) *Error { return newf(KindConfig, format, args...) }

// ConfigWrap wraps an underlying cause as a ConfigError.
func ConfigWrap(err error, format string, args ...any) *Error {
	return wrapf(KindConfig, err, format, args...)
}

// Input constructs an InputError.
func Input(format string, args ...any) *Error { return newf(KindInput, format, args...) }

// InputWrap wraps an underlying cause as an InputError.
func InputWrap(err error, format string, args ...any) *Error {
	return wrapf(KindInput, err, format, args...)
}

// Grid constructs a GridError.
func Grid(format string, args ...any) *Error { return newf(KindGrid, format, args...) }

// IO constructs an IoError.
func IO(format string, args ...any) *Error { return newf(KindIO, format, args...) }

// IOWrap wraps an underlying cause as an IoError.
func IOWrap(err error, format string, args ...any) *Error {
	return wrapf(KindIO, err, format, args...)
}

// Internal constructs an InternalError.
func Internal(format string, args ...any) *Error { return newf(KindInternal, format, args...) }

// As reports whether err (or any error it wraps) is a *Error of the given
// kind, mirroring the teacher's plain errors.As usage.
func As(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// KindOf returns the Kind of err (or any error it wraps), and false if
// err is not (and wraps no) *Error — used by cmd/demosaic to pick an
// exit code for spec.md §6's single-line diagnostic.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if ee, ok := err.(*Error); ok {
			return ee.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}
