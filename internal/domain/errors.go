// Package domain holds the error vocabulary shared across the review
// pipeline and the rally orchestrator.
package domain

import "fmt"

// ErrorCode classifies review errors for retry and display decisions.
type ErrorCode string

const (
	ErrCodeTransientIO   ErrorCode = "transient_io"
	ErrCodeMalformed     ErrorCode = "malformed_input"
	ErrCodeInvariant     ErrorCode = "invariant_violation"
	ErrCodeConfig        ErrorCode = "config_error"
	ErrCodeAgentProtocol ErrorCode = "agent_protocol_error"
	ErrCodeAgentTimeout  ErrorCode = "agent_timeout"
	ErrCodeAgentNotFound ErrorCode = "agent_not_found"
	ErrCodePRNotFound    ErrorCode = "pr_not_found"
	ErrCodeUserAbort     ErrorCode = "user_abort"
)

// ReviewError is a classified error with an optional wrapped cause.
type ReviewError struct {
	Code      ErrorCode
	Message   string
	Err       error
	Retryable bool
}

// Error implements the error interface.
func (e *ReviewError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ReviewError) Unwrap() error {
	return e.Err
}

// NewError creates a ReviewError with retryability derived from the code.
func NewError(code ErrorCode, message string, err error) *ReviewError {
	return &ReviewError{
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: isRetryable(code),
	}
}

func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeTransientIO, ErrCodeAgentTimeout:
		return true
	default:
		return false
	}
}

// ErrTransientIO wraps a network, subprocess, or channel failure the user
// may retry.
func ErrTransientIO(message string, err error) *ReviewError {
	return NewError(ErrCodeTransientIO, message, err)
}

// ErrMalformed wraps a bad patch or bad JSON reported per item.
func ErrMalformed(message string, err error) *ReviewError {
	return NewError(ErrCodeMalformed, message, err)
}

// ErrConfig wraps a startup configuration failure.
func ErrConfig(message string, err error) *ReviewError {
	return NewError(ErrCodeConfig, message, err)
}

// ErrAgentProtocol marks a terminal agent payload that does not match the
// expected schema.
func ErrAgentProtocol(message string, err error) *ReviewError {
	return NewError(ErrCodeAgentProtocol, message, err)
}

// ErrAgentTimeout marks an agent run exceeding its deadline.
func ErrAgentTimeout(err error) *ReviewError {
	return NewError(ErrCodeAgentTimeout, "agent timed out", err)
}

// ErrAgentNotFound marks a missing agent CLI binary.
func ErrAgentNotFound(name string) *ReviewError {
	return NewError(ErrCodeAgentNotFound, fmt.Sprintf("%s CLI not found in PATH", name), nil)
}

// ErrPRNotFound marks a pull request lookup miss.
func ErrPRNotFound(number int) *ReviewError {
	return NewError(ErrCodePRNotFound, fmt.Sprintf("PR #%d not found", number), nil)
}

// ErrUserAbort marks a user-initiated stop.
func ErrUserAbort() *ReviewError {
	return NewError(ErrCodeUserAbort, "aborted by user", nil)
}
