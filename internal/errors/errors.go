package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a snipsense error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrMissingCredential ErrorCode = "MISSING_CREDENTIAL" // 401
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrAnalysisActive    ErrorCode = "ANALYSIS_ACTIVE"    // 409
	ErrNothingToAnalyze  ErrorCode = "NOTHING_TO_ANALYZE" // 422
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// AgentError represents a structured error with code, status, and details.
// All request surfaces (CLI, MCP, web) report failures through this type.
type AgentError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *AgentError {
	return &AgentError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewMissingCredential creates a 401 error for operations that require an API
// credential before one has been configured.
func NewMissingCredential() *AgentError {
	return &AgentError{
		Code:    ErrMissingCredential,
		Status:  401,
		Message: "no API credential configured; set one with `snipsense credential set`",
	}
}

// NewNotFound creates a 404 error for a missing run or suggestion.
func NewNotFound(kind, identifier string) *AgentError {
	return &AgentError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewAnalysisActive creates a 409 error for when an analysis run is already
// in flight and a second one is requested.
func NewAnalysisActive() *AgentError {
	return &AgentError{
		Code:    ErrAnalysisActive,
		Status:  409,
		Message: "an analysis run is already in progress",
	}
}

// NewNothingToAnalyze creates a 422 error for an analysis request against an
// empty prompt log.
func NewNothingToAnalyze() *AgentError {
	return &AgentError{
		Code:    ErrNothingToAnalyze,
		Status:  422,
		Message: "the prompt log is empty; nothing to analyze",
	}
}

// NewInternal creates a 500 error for unexpected internal errors. The message
// is generic; the original error is kept in Details for logging.
func NewInternal(err error) *AgentError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &AgentError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (possibly wrapped) is an AgentError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *AgentError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}
