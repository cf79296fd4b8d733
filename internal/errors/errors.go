package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeAlignment        = "ALIGNMENT_ERROR"
	CodeConfig           = "CONFIG_ERROR"
	CodeDomain           = "DOMAIN_ERROR"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Alignment reports a coordinate mismatch between forecast and observation series
func Alignment(message string) *AppError {
	return New(CodeAlignment, message)
}

// Alignmentf reports a coordinate mismatch with formatted detail
func Alignmentf(format string, args ...interface{}) *AppError {
	return New(CodeAlignment, fmt.Sprintf(format, args...))
}

// Config reports invalid thresholds or run options
func Config(message string) *AppError {
	return New(CodeConfig, message)
}

// Configf reports invalid thresholds or run options with formatted detail
func Configf(format string, args ...interface{}) *AppError {
	return New(CodeConfig, fmt.Sprintf(format, args...))
}

// Domain reports a value outside its required range
func Domain(message string) *AppError {
	return New(CodeDomain, message)
}

// Domainf reports a value outside its required range with formatted detail
func Domainf(format string, args ...interface{}) *AppError {
	return New(CodeDomain, fmt.Sprintf(format, args...))
}

// InsufficientData reports too few verification units for the requested statistic
func InsufficientData(message string) *AppError {
	return New(CodeInsufficientData, message)
}

// InsufficientDataf reports too few units with formatted detail
func InsufficientDataf(format string, args ...interface{}) *AppError {
	return New(CodeInsufficientData, fmt.Sprintf(format, args...))
}

// DatabaseError reports a storage failure
func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

// IsAlignment checks whether err carries the alignment code
func IsAlignment(err error) bool { return GetCode(err) == CodeAlignment }

// IsConfig checks whether err carries the config code
func IsConfig(err error) bool { return GetCode(err) == CodeConfig }

// IsDomain checks whether err carries the domain code
func IsDomain(err error) bool { return GetCode(err) == CodeDomain }

// IsInsufficientData checks whether err carries the insufficient-data code
func IsInsufficientData(err error) bool { return GetCode(err) == CodeInsufficientData }
