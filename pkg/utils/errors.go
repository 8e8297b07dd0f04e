package utils

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDataIntegrity  = errors.New("data integrity violation")
	ErrConflict       = errors.New("resource conflict")
	ErrTaskInProgress = errors.New("update task already in progress")
	ErrQuotaExhausted = errors.New("monthly API quota exhausted")
	ErrUpstreamAuth   = errors.New("provider authentication failed")
	ErrUpstream       = errors.New("provider request failed")
	ErrCancelled      = errors.New("task cancelled")
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewAppError(code string, message string, details ...string) *AppError {
	err := &AppError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeDataIntegrity  = "DATA_INTEGRITY"
	ErrCodeQuotaExhausted = "QUOTA_EXHAUSTED"
	ErrCodeTaskInProgress = "TASK_IN_PROGRESS"
	ErrCodeUpstream       = "UPSTREAM_ERROR"
	ErrCodeUpstreamAuth   = "UPSTREAM_AUTH"
)
