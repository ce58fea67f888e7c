// Package fs provides filesystem implementations.
//
// This file contains error types and error handling utilities.
package fs

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"ritsufs/internal/logging"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// ErrPathNotFound indicates a path other than the root or the link
	ErrPathNotFound = errors.New("path not found")
)

// FSError (renamed to Error because of linter) wraps filesystem
// errors with context about the operation and affected path to
// provide more detailed error information.
type Error struct {
	Op   string // Operation that failed (e.g., "getattr", "readlink")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// ToFuseError converts an error to the FUSE error code returned to the
// kernel. Anything not recognized becomes EIO.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	var fsErr *Error
	if errors.As(err, &fsErr) {
		errLogger.Trace("Converting FSError to FUSE error: %v", fsErr)

		switch {
		case errors.Is(fsErr.Err, ErrPathNotFound):
			return syscall.ENOENT
		default:
			errLogger.Debug("Unknown FSError type, returning EIO: %v", fsErr)
			return syscall.EIO
		}
	}

	// For non-FSErrors, convert common error types
	errLogger.Trace("Converting standard error to FUSE error: %v", err)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}

// NewFSError creates a new FSError with the given operation, path, and underlying error
func NewFSError(op string, path string, err error) *Error {
	fsErr := &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
	errLogger.Debug("Created new FSError: %v", fsErr)
	return fsErr
}

// Common operation names for consistent logging and error reporting
const (
	OpLookup   = "lookup"   // Looking up a name in the root
	OpReadDir  = "readdir"  // Reading directory contents
	OpReadlink = "readlink" // Resolving the link
	OpGetattr  = "getattr"  // Getting attributes
)
