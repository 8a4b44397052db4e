package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeNotFound          ErrorCode = "not_found"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodeStoreUnavailable  ErrorCode = "store_unavailable"
	CodeRemoteUnavailable ErrorCode = "remote_unavailable"
	CodeResolutionFailed  ErrorCode = "resolution_failed"
	CodeInternal          ErrorCode = "internal"
)

type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func InvalidArgument(message string) *AppError {
	return &AppError{Code: CodeInvalidArgument, Message: message}
}

func NotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func Unauthenticated(message string) *AppError {
	return &AppError{Code: CodeUnauthenticated, Message: message}
}

// StoreError reports that the persistence layer could not serve a request.
// It must never be read as "record not found".
func StoreError(message string, cause error) *AppError {
	return &AppError{Code: CodeStoreUnavailable, Message: message, Cause: cause}
}

// RemoteError covers authority transport failures, non-200 responses and
// undecodable bodies.
func RemoteError(message string, cause error) *AppError {
	return &AppError{Code: CodeRemoteUnavailable, Message: message, Cause: cause}
}

func ResolutionError(namehash string, cause error) *AppError {
	return &AppError{
		Code:    CodeResolutionFailed,
		Message: fmt.Sprintf("failed to resolve namehash %q", namehash),
		Cause:   cause,
	}
}

func Internal(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Cause: cause}
}

// AsAppError returns the outermost AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var typed *AppError
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsCode reports whether any AppError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var typed *AppError
		if !errors.As(err, &typed) {
			return false
		}
		if typed.Code == code {
			return true
		}
		err = typed.Cause
	}
	return false
}
