package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInternal          = errors.New("internal error")
	ErrDatabase          = errors.New("database error")
	ErrValidation        = errors.New("validation failed")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...any) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...any) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps application errors onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupportedFormat):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
