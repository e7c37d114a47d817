package scanner

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrorReason categorizes why a directory could not be enumerated
type ErrorReason int

const (
	ErrorPermissionDenied ErrorReason = iota
	ErrorNotFound
	ErrorNotDirectory
	ErrorUnknown
)

// String returns a human-readable error reason
func (e ErrorReason) String() string {
	switch e {
	case ErrorPermissionDenied:
		return "Permission denied"
	case ErrorNotFound:
		return "Directory vanished"
	case ErrorNotDirectory:
		return "Not a directory"
	case ErrorUnknown:
		return "Unknown error"
	default:
		return "Unspecified error"
	}
}

// EnumError is a skipped subtree. The scan carries on without it.
type EnumError struct {
	Path     string
	Reason   ErrorReason
	Original error
}

// Error implements the error interface
func (e *EnumError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Reason, e.Original)
}

// Unwrap exposes the underlying OS error
func (e *EnumError) Unwrap() error {
	return e.Original
}

// CategorizeError analyzes a listing error and returns a categorized EnumError
func CategorizeError(path string, err error) *EnumError {
	if err == nil {
		return nil
	}

	enumErr := &EnumError{
		Path:     path,
		Original: err,
		Reason:   ErrorUnknown,
	}

	switch {
	case os.IsNotExist(err):
		enumErr.Reason = ErrorNotFound
		return enumErr
	case os.IsPermission(err):
		enumErr.Reason = ErrorPermissionDenied
		return enumErr
	}

	// Check syscall errors
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM:
			enumErr.Reason = ErrorPermissionDenied
		case syscall.ENOENT:
			enumErr.Reason = ErrorNotFound
		case syscall.ENOTDIR:
			enumErr.Reason = ErrorNotDirectory
		}
	}

	return enumErr
}

// GroupErrors groups enumeration errors by reason
func GroupErrors(errs []*EnumError) map[ErrorReason][]*EnumError {
	grouped := make(map[ErrorReason][]*EnumError)
	for _, err := range errs {
		grouped[err.Reason] = append(grouped[err.Reason], err)
	}
	return grouped
}

// FormatErrorSummary creates a short summary of skipped subtrees
func FormatErrorSummary(errs []*EnumError) string {
	if len(errs) == 0 {
		return ""
	}

	grouped := GroupErrors(errs)
	summary := "Skipped directories:\n"
	for _, reason := range []ErrorReason{ErrorPermissionDenied, ErrorNotFound, ErrorNotDirectory, ErrorUnknown} {
		if list, ok := grouped[reason]; ok {
			summary += fmt.Sprintf("  %s: %d\n", reason, len(list))
		}
	}
	return summary
}
