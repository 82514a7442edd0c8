// Package errors provides the failure taxonomy shared by the scoring pipeline,
// the job workers and the persistence layer.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Failure Classes
// ==========================

// FailureClass classifies a failed operation.
type FailureClass string

// Upstream scoring failures
const (
	ClassNetwork     FailureClass = "NETWORK_ERROR"
	ClassRateLimited FailureClass = "RATE_LIMITED"
	ClassServer      FailureClass = "SERVER_ERROR"
	ClassMalformed   FailureClass = "MALFORMED_RESPONSE"
	ClassValidation  FailureClass = "VALIDATION_ERROR"
	ClassFatal       FailureClass = "FATAL"
	ClassCancelled   FailureClass = "CANCELLED"
)

// Collaborator failures
const (
	ClassSubscriptionInvalid     FailureClass = "SUBSCRIPTION_INVALID"
	ClassSubscriptionCheckFailed FailureClass = "SUBSCRIPTION_CHECK_FAILED"
	ClassStorageFailed           FailureClass = "STORAGE_FAILED"
)

// CancelledMessage is surfaced when the caller abandons a run.
const CancelledMessage = "Calculation was cancelled"

// PipelineError is the structured error returned by every pipeline stage.
// Message is display-ready; Details carries the underlying cause.
type PipelineError struct {
	Class      FailureClass           `json:"class"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Attempts   int                    `json:"attempts,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	cause error
}

func (e *PipelineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown failure"
	}
	class := e.Class
	if class == "" {
		class = ClassFatal
	}
	return fmt.Sprintf("PipelineError[%s]: %s", class, msg)
}

func (e *PipelineError) Unwrap() error {
	return e.cause
}

// Is matches another PipelineError of the same class, so the class sentinels
// below work with errors.Is.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Class == e.Class
}

// WithAttempts records how many upstream attempts were made before the error.
func (e *PipelineError) WithAttempts(n int) *PipelineError {
	e.Attempts = n
	return e
}

// Class sentinels for errors.Is.
var (
	ErrNetwork     = &PipelineError{Class: ClassNetwork}
	ErrRateLimited = &PipelineError{Class: ClassRateLimited}
	ErrServer      = &PipelineError{Class: ClassServer}
	ErrMalformed   = &PipelineError{Class: ClassMalformed}
	ErrValidation  = &PipelineError{Class: ClassValidation}
	ErrFatal       = &PipelineError{Class: ClassFatal}
	ErrCancelled   = &PipelineError{Class: ClassCancelled}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNetworkError wraps a transport failure or per-attempt timeout.
func NewNetworkError(err error) *PipelineError {
	details := "connection failed"
	if err != nil {
		details = err.Error()
	}
	return &PipelineError{
		Class:     ClassNetwork,
		Message:   "Network request failed: " + details,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTimeoutError is a NETWORK_ERROR for an attempt that exceeded its deadline.
func NewTimeoutError(timeout time.Duration) *PipelineError {
	return &PipelineError{
		Class:     ClassNetwork,
		Message:   fmt.Sprintf("Request timed out after %s", timeout),
		Details:   "per-attempt timeout exceeded",
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     context.DeadlineExceeded,
	}
}

// NewHTTPStatusError classifies a non-2xx upstream response. 429 is
// RATE_LIMITED, 5xx is SERVER_ERROR and anything else is FATAL.
func NewHTTPStatusError(status int, statusText, upstreamMessage string) *PipelineError {
	reason := strings.TrimSpace(upstreamMessage)
	if reason == "" {
		reason = statusText
	}
	if reason == "" {
		reason = "Unknown error"
	}

	class := ClassFatal
	switch {
	case status == 429:
		class = ClassRateLimited
	case status >= 500:
		class = ClassServer
	}

	return &PipelineError{
		Class:      class,
		Message:    fmt.Sprintf("API request failed: %d - %s", status, reason),
		Details:    statusText,
		StatusCode: status,
		Retryable:  class != ClassFatal,
		Timestamp:  time.Now().UTC(),
	}
}

// NewMalformedResponseError reports upstream content that could not be parsed
// or is missing required fields.
func NewMalformedResponseError(details string, err error) *PipelineError {
	if details == "" && err != nil {
		details = err.Error()
	}
	return &PipelineError{
		Class:     ClassMalformed,
		Message:   "Invalid response format: " + details,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewValidationError is returned when answers are incomplete.
func NewValidationError(details string) *PipelineError {
	return &PipelineError{
		Class:     ClassValidation,
		Message:   "Please answer all questions before continuing",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFatalError wraps anything that must not be retried.
func NewFatalError(message string, err error) *PipelineError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	if message == "" {
		message = "Unexpected error"
	}
	return &PipelineError{
		Class:     ClassFatal,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCancelledError is returned when the caller abandons a run.
func NewCancelledError() *PipelineError {
	return &PipelineError{
		Class:     ClassCancelled,
		Message:   CancelledMessage,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     context.Canceled,
	}
}

// NewSubscriptionInvalidError creates a non-retryable entitlement error.
func NewSubscriptionInvalidError(details string) *PipelineError {
	return &PipelineError{
		Class:     ClassSubscriptionInvalid,
		Message:   "No active subscription",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubscriptionCheckFailedError creates a retryable entitlement lookup error.
func NewSubscriptionCheckFailedError(err error) *PipelineError {
	return &PipelineError{
		Class:     ClassSubscriptionCheckFailed,
		Message:   "Database error during subscription check",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStorageFailedError creates a retryable persistence error.
func NewStorageFailedError(op string, err error) *PipelineError {
	return &PipelineError{
		Class:     ClassStorageFailed,
		Message:   fmt.Sprintf("Storage operation '%s' failed", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps failure classes to BPMN error codes used in the
// scoring process models.
var BPMNErrorMapping = map[FailureClass]string{
	ClassNetwork:                 "SCORING_UNAVAILABLE",
	ClassRateLimited:             "SCORING_UNAVAILABLE",
	ClassServer:                  "SCORING_UNAVAILABLE",
	ClassMalformed:               "SCORING_INVALID_RESPONSE",
	ClassValidation:              "ANSWERS_INCOMPLETE",
	ClassFatal:                   "SCORING_FAILED",
	ClassCancelled:               "SCORING_CANCELLED",
	ClassSubscriptionInvalid:     "SUBSCRIPTION_INVALID",
	ClassSubscriptionCheckFailed: "SUBSCRIPTION_CHECK_FAILED",
	ClassStorageFailed:           "STORAGE_FAILED",
}

// ConvertToBPMNError converts a PipelineError to a BPMNError for Camunda.
func ConvertToBPMNError(pErr *PipelineError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[pErr.Class]
	if !exists {
		bpmnCode = string(pErr.Class)
	}

	retries := GetRetryBudget(pErr.Class)
	if !pErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"failureClass": string(pErr.Class),
		"timestamp":    pErr.Timestamp.Format(time.RFC3339),
	}
	if pErr.StatusCode != 0 {
		vars["statusCode"] = pErr.StatusCode
	}
	if pErr.Attempts != 0 {
		vars["attempts"] = pErr.Attempts
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        pErr.Message,
		Details:        pErr.Details,
		Retryable:      pErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// ClassOf returns the failure class of any error. Bare context errors map to
// CANCELLED and NETWORK_ERROR; unknown errors are FATAL.
func ClassOf(err error) FailureClass {
	if err == nil {
		return ""
	}
	var pErr *PipelineError
	if stderrors.As(err, &pErr) && pErr.Class != "" {
		return pErr.Class
	}
	switch {
	case stderrors.Is(err, context.Canceled):
		return ClassCancelled
	case stderrors.Is(err, context.DeadlineExceeded):
		return ClassNetwork
	}
	return ClassFatal
}

// AsPipelineError normalizes any error into a PipelineError.
func AsPipelineError(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pErr *PipelineError
	if stderrors.As(err, &pErr) {
		return pErr
	}
	switch ClassOf(err) {
	case ClassCancelled:
		return NewCancelledError()
	case ClassNetwork:
		return NewNetworkError(err)
	}
	return NewFatalError("", err)
}

// IsRetryable reports whether the class may be retried.
func IsRetryable(class FailureClass) bool {
	return GetRetryBudget(class) > 0
}

// GetRetryBudget returns the retry budget for a failure class. The upstream
// classes share one budget inside the scoring client.
func GetRetryBudget(class FailureClass) int {
	switch class {
	case ClassNetwork, ClassRateLimited, ClassServer, ClassMalformed:
		return 3
	case ClassSubscriptionCheckFailed, ClassStorageFailed:
		return 2
	default:
		return 0
	}
}

// GetErrorCategory returns the reporting category of a failure class.
func GetErrorCategory(class FailureClass) string {
	switch class {
	case ClassNetwork, ClassRateLimited, ClassServer:
		return "UPSTREAM"
	case ClassMalformed:
		return "RESPONSE"
	case ClassValidation:
		return "VALIDATION"
	case ClassCancelled:
		return "CANCELLED"
	case ClassSubscriptionInvalid, ClassSubscriptionCheckFailed:
		return "SUBSCRIPTION"
	case ClassStorageFailed:
		return "STORAGE"
	default:
		return "OTHER"
	}
}
