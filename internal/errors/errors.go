package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Error taxonomy for the tax document worker
 *
 * Callers must be able to tell "nothing to process" (INPUT_VALIDATION)
 * apart from "processing failed" (RECOGNITION_FAILED and friends).
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Intake errors
	ErrorInputValidation   ErrorCode = "INPUT_VALIDATION"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Processing errors
	ErrorRecognitionFailed ErrorCode = "RECOGNITION_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"

	// Resource errors
	ErrorResourceRelease ErrorCode = "RESOURCE_RELEASE_FAILED"
	ErrorStorageFailed   ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// HasCode reports whether err, or anything it wraps, is a ProcessingError with code.
func HasCode(err error, code ErrorCode) bool {
	var pe *ProcessingError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == code
}

// CodeOf returns the code of the outermost ProcessingError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Factory functions for common errors

func NewInputValidationError(jobID string, reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInputValidation,
		Message:   reason,
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func NewRecognitionError(jobID string, engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRecognitionFailed,
		Message:   fmt.Sprintf("Text recognition failed (engine: %s)", engine),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewResourceReleaseError(jobID string, resourceID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorResourceRelease,
		Message:   fmt.Sprintf("Failed to release temporary resource %s", resourceID),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"resource_id": resourceID,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store temporary document",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for job records
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
