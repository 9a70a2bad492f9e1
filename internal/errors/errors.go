package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

type ErrorType string

const (
	TypeDependency ErrorType = "Dependency" // Missing native tool (e.g. mysqldump)
	TypeConnection ErrorType = "Connection" // Network issue, retry may succeed
	TypeTimeout    ErrorType = "Timeout"    // Deadline exceeded, retry may succeed
	TypeAuth       ErrorType = "Auth"       // Rejected credentials, SSH keys, TLS certs
	TypeIntegrity  ErrorType = "Integrity"  // Zero-byte artifact, checksum unavailable
	TypeConfig     ErrorType = "Config"     // Invalid flags, missing required params
	TypeResource   ErrorType = "Resource"   // Permission denied, quota, invalid path
	TypeInternal   ErrorType = "Internal"   // Unexpected internal failure
	TypeCancelled  ErrorType = "Cancelled"  // Caller cancelled the run
)

// AppError is a rich error type that categorizes failures and carries hints for users.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Hint    string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(t ErrorType, msg string, hint string) *AppError {
	return &AppError{
		Type:    t,
		Message: msg,
		Hint:    hint,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, t ErrorType, msg string, hint string) *AppError {
	return &AppError{
		Type:    t,
		Message: msg,
		Err:     err,
		Hint:    hint,
	}
}

// IsType reports whether err (or anything it wraps) is an AppError of type t.
func IsType(err error, t ErrorType) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type == t
	}
	return false
}

// TypeOf reports the category of err, or TypeInternal for untyped errors.
func TypeOf(err error) ErrorType {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type
	}
	if errors.Is(err, context.Canceled) {
		return TypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TypeTimeout
	}
	return TypeInternal
}

// IsTransient reports whether retrying the failed operation could plausibly
// succeed. Connection resets, refused connections and timeouts qualify; an
// auth rejection or a bad remote path never does, no matter how often it is
// retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Type {
		case TypeConnection, TypeTimeout:
			return true
		case TypeAuth, TypeConfig, TypeResource, TypeIntegrity, TypeDependency, TypeCancelled:
			return false
		}
		// TypeInternal wrappers let the inner error decide.
		if ae.Err != nil {
			err = ae.Err
		}
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
		return false
	}

	return false
}

var (
	ErrIntegrityMismatch = New(TypeIntegrity, "Integrity failure", "The backup file may be corrupt or truncated. Verify the dump tool output.")
	ErrEmptyArtifact     = New(TypeIntegrity, "Backup produced no data", "The dump tool exited cleanly but wrote zero bytes. Check database privileges for the backup user.")
)
