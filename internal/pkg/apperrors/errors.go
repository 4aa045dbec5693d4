package apperrors

import (
	"errors"
	"fmt"
)

const (
	CodeStoreConnectivity = "STORE_CONNECTIVITY"
	CodeStoreExecution    = "STORE_EXECUTION"
	CodeScoreComputation  = "SCORE_COMPUTATION"
	CodeTransfer          = "TRANSFER_FAILED"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrStoreConnectivity = errors.New("store connectivity error")

	ErrStoreExecution = errors.New("store execution error")

	// ErrConstraintViolation is always reported together with ErrStoreExecution.
	ErrConstraintViolation = errors.New("constraint violation")

	ErrScoreComputation = errors.New("credit score computation failed")

	ErrTransfer = errors.New("balance transfer failed")

	ErrInternalServer = errors.New("internal server error")

	ErrUnauthorized = errors.New("unauthorized")

	ErrConflict = errors.New("resource conflict")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

func NewInvalidArgumentError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapConnectivityError(cause error, message string) error {
	return &AppError{
		Code:    CodeStoreConnectivity,
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrStoreConnectivity, cause),
	}
}

func WrapExecutionError(cause error, message string) error {
	return &AppError{
		Code:    CodeStoreExecution,
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrStoreExecution, cause),
	}
}

// NewScoreComputationError keeps the store failure reachable through errors.Is/As.
func NewScoreComputationError(customerID int64, cause error) error {
	return &AppError{
		Code:    CodeScoreComputation,
		Message: fmt.Sprintf("credit score computation failed for customer %d", customerID),
		Cause:   fmt.Errorf("%w: %w", ErrScoreComputation, cause),
	}
}

func NewTransferError(senderID, receiverID int64, cause error) error {
	return &AppError{
		Code:    CodeTransfer,
		Message: fmt.Sprintf("transfer from account %d to account %d failed", senderID, receiverID),
		Cause:   fmt.Errorf("%w: %w", ErrTransfer, cause),
	}
}

// CodeOf returns the code of the outermost AppError in the chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
