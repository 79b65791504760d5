package models

import "fmt"

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrPackageParse ErrorType = iota
	ErrMetadataGen
	ErrSigning
	ErrFileOp
	ErrInvalidConfig
	ErrWatch
	ErrCommit
	ErrUnhandledEvent
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrPackageParse:
		return "PackageParse"
	case ErrMetadataGen:
		return "MetadataGen"
	case ErrSigning:
		return "Signing"
	case ErrFileOp:
		return "FileOp"
	case ErrInvalidConfig:
		return "InvalidConfig"
	case ErrWatch:
		return "Watch"
	case ErrCommit:
		return "Commit"
	case ErrUnhandledEvent:
		return "UnhandledEvent"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by the daemon's components. Package
// holds the artifact filename or package name involved, if any.
type Error struct {
	Type    ErrorType
	Package string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same type, so that callers can test
// for a category with errors.Is(err, &models.Error{Type: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Type == e.Type
}
