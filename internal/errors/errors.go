package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the NutriScan worker
 *
 * The scan pipelines distinguish four failure families:
 * - precondition errors (nothing to look up)
 * - lookup outcomes (looked up, found nothing / found no data)
 * - transient failures that exhausted their retry budget
 * - collaborator failures (classifier, OCR, storage)
 *
 * Parsing gaps are NOT errors; the parser encodes them as absent fields.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Precondition errors
	ErrorPreconditionFailed ErrorCode = "PRECONDITION_FAILED"

	// Lookup outcomes
	ErrorLookupNotFound ErrorCode = "LOOKUP_NOT_FOUND"
	ErrorLookupNoData   ErrorCode = "LOOKUP_NO_DATA"
	ErrorLookupFailed   ErrorCode = "LOOKUP_FAILED"

	// Classifier errors
	ErrorClassifyFailed ErrorCode = "CLASSIFY_FAILED"
	ErrorUnknownClass   ErrorCode = "UNKNOWN_CLASS"

	// Processing errors
	ErrorDecodeFailed      ErrorCode = "DECODE_FAILED"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ScanError represents a structured scan processing error
type ScanError struct {
	Code      ErrorCode
	Message   string
	ScanID    string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the structured code from an error chain. Errors outside the
// taxonomy report an empty code.
func CodeOf(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	return ""
}

// Factory functions for common errors

func NewPreconditionError(message string) *ScanError {
	return &ScanError{
		Code:      ErrorPreconditionFailed,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewLookupNotFoundError(foodName string) *ScanError {
	return &ScanError{
		Code:      ErrorLookupNotFound,
		Message:   fmt.Sprintf("No results found for %q", foodName),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"food_name": foodName,
		},
	}
}

func NewLookupNoDataError(foodName string) *ScanError {
	return &ScanError{
		Code:      ErrorLookupNoData,
		Message:   fmt.Sprintf("No nutritional data available for %q", foodName),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"food_name": foodName,
		},
	}
}

func NewLookupFailedError(foodName string, attempts int, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorLookupFailed,
		Message:   fmt.Sprintf("Nutrition lookup failed after %d attempts", attempts),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"food_name": foodName,
			"attempts":  attempts,
		},
		Cause: cause,
	}
}

func NewClassifyFailedError(cause error) *ScanError {
	return &ScanError{
		Code:      ErrorClassifyFailed,
		Message:   "Image classification failed",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewUnknownClassError(detail string) *ScanError {
	return &ScanError{
		Code:      ErrorUnknownClass,
		Message:   fmt.Sprintf("Classifier produced an unrecognized class: %s", detail),
		Timestamp: time.Now(),
	}
}

func NewDecodeFailedError(scanID string, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorDecodeFailed,
		Message:   "Failed to decode scan image",
		ScanID:    scanID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRFailedError(scanID string, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorOCRFailed,
		Message:   "OCR failed on label image",
		ScanID:    scanID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewProcessingTimeoutError(scanID string, duration time.Duration, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		ScanID:    scanID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(scanID string, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store scan results",
		ScanID:    scanID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ScanError) ToMap() map[string]interface{} {
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
