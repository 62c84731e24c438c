package errors

import (
	"fmt"
	"time"
)

/**
 * Error types for the annotation engine
 *
 * Every failure that crosses a component boundary is an AnnotationError with
 * a stable code. Only DOCUMENT_LOAD_FAILED is fatal to an editing session;
 * the rest are reported to the user and the session continues.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Session errors
	ErrorDocumentLoadFailed ErrorCode = "DOCUMENT_LOAD_FAILED"
	ErrorCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	ErrorRecognitionFailed  ErrorCode = "RECOGNITION_FAILED"
	ErrorRecognitionPending ErrorCode = "RECOGNITION_PENDING"
	ErrorSaveFailed         ErrorCode = "SAVE_FAILED"
	ErrorReprocessFailed    ErrorCode = "REPROCESS_FAILED"
	ErrorFeedbackFailed     ErrorCode = "FEEDBACK_FAILED"

	// Worker errors
	ErrorInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
)

// AnnotationError represents a structured engine error
type AnnotationError struct {
	Code      ErrorCode
	Message   string
	ContactID string
	BlockID   string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *AnnotationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AnnotationError) Unwrap() error {
	return e.Cause
}

// Is matches any AnnotationError with the same code.
func (e *AnnotationError) Is(target error) bool {
	t, ok := target.(*AnnotationError)
	return ok && t.Code == e.Code
}

// Recoverable reports whether the session can continue after this error.
func (e *AnnotationError) Recoverable() bool {
	return e.Code != ErrorDocumentLoadFailed
}

// Sentinels for errors.Is checks.
var (
	ErrDocumentLoad       = &AnnotationError{Code: ErrorDocumentLoadFailed}
	ErrCatalogUnavailable = &AnnotationError{Code: ErrorCatalogUnavailable}
	ErrRecognition        = &AnnotationError{Code: ErrorRecognitionFailed}
	ErrRecognitionPending = &AnnotationError{Code: ErrorRecognitionPending}
	ErrSave               = &AnnotationError{Code: ErrorSaveFailed}
	ErrInvalidPayload     = &AnnotationError{Code: ErrorInvalidPayload}
	ErrStorage            = &AnnotationError{Code: ErrorStorageFailed}
	ErrProcessingTimeout  = &AnnotationError{Code: ErrorProcessingTimeout}
)

// Factory functions for common errors

func NewDocumentLoadError(contactID string, cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorDocumentLoadFailed,
		Message:   "Failed to load OCR blocks",
		ContactID: contactID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewCatalogUnavailableError(cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorCatalogUnavailable,
		Message:   "Field catalog unavailable, showing raw field names",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewRecognitionFailedError(contactID, blockID string, cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorRecognitionFailed,
		Message:   "Block re-recognition failed",
		ContactID: contactID,
		BlockID:   blockID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewRecognitionPendingError(contactID, blockID string) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorRecognitionPending,
		Message:   "Re-recognition already in progress for block",
		ContactID: contactID,
		BlockID:   blockID,
		Timestamp: time.Now(),
	}
}

func NewSaveFailedError(contactID string, blocks int, cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorSaveFailed,
		Message:   "Failed to save field mappings",
		ContactID: contactID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"block_count": blocks,
		},
		Cause: cause,
	}
}

func NewReprocessFailedError(contactID string, cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorReprocessFailed,
		Message:   "Failed to reprocess OCR",
		ContactID: contactID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewFeedbackFailedError(contactID string, cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorFeedbackFailed,
		Message:   "Failed to submit OCR feedback",
		ContactID: contactID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewInvalidPayloadError(taskType string, cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorInvalidPayload,
		Message:   fmt.Sprintf("Invalid payload for task: %s", taskType),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"task_type": taskType,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(contactID string, cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store feedback sample",
		ContactID: contactID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewProcessingTimeoutError(contactID string, duration time.Duration, cause error) *AnnotationError {
	return &AnnotationError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		ContactID: contactID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

// ToMap converts error to map for logging and persistence
func (e *AnnotationError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.ContactID != "" {
		result["contact_id"] = e.ContactID
	}
	if e.BlockID != "" {
		result["block_id"] = e.BlockID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
