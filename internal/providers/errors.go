package providers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorReason classifies a provider-level failure so callers can decide
// whether to retry without re-parsing error strings.
type ErrorReason string

const (
	ReasonRateLimit            ErrorReason = "rate_limit"
	ReasonTimeout              ErrorReason = "timeout"
	ReasonServerError          ErrorReason = "server_error"
	ReasonContextLengthExceeded ErrorReason = "context_length_exceeded"
	ReasonAuthentication       ErrorReason = "authentication"
	ReasonInvalidRequest       ErrorReason = "invalid_request"
	ReasonModelNotFound        ErrorReason = "model_not_found"
	ReasonAPIError             ErrorReason = "api_error"
	ReasonUnknown              ErrorReason = "unknown"
)

// IsRetryable reports whether a request that failed for this reason should
// be retried with backoff. Only rate limiting, timeouts, and transient
// server errors are retryable; everything else (bad request shape, auth,
// unknown model, context overflow) will fail identically on retry.
func (r ErrorReason) IsRetryable() bool {
	switch r {
	case ReasonRateLimit, ReasonTimeout, ReasonServerError:
		return true
	default:
		return false
	}
}

// Error is a structured provider failure carrying enough context for the
// loop and logs to act without string-matching the underlying SDK error.
type Error struct {
	Reason    ErrorReason
	Provider  string
	Model     string
	Status    int
	Message   string
	RequestID string
	Cause     error
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Reason))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError wraps cause as a classified provider Error.
func NewError(provider, model string, cause error) *Error {
	err := &Error{Provider: provider, Model: model, Cause: cause, Reason: ReasonUnknown}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = classifyError(cause)
	}
	return err
}

// WithStatus attaches an HTTP status code and reclassifies by it.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	if r := classifyStatus(status); r != ReasonUnknown {
		e.Reason = r
	}
	return e
}

// WithRequestID attaches the provider's request id for debugging.
func (e *Error) WithRequestID(id string) *Error {
	e.RequestID = id
	return e
}

// AsProviderError unwraps err looking for an *Error.
func AsProviderError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func classifyStatus(status int) ErrorReason {
	switch {
	case status == 401 || status == 403:
		return ReasonAuthentication
	case status == 404:
		return ReasonModelNotFound
	case status == 400 || status == 422:
		return ReasonInvalidRequest
	case status == 429:
		return ReasonRateLimit
	case status >= 500:
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

func classifyError(err error) ErrorReason {
	if err == nil {
		return ReasonUnknown
	}
	if pe, ok := AsProviderError(err); ok {
		return pe.Reason
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "rate_limit") || strings.Contains(s, "429") || strings.Contains(s, "too many requests"):
		return ReasonRateLimit
	case strings.Contains(s, "context_length") || strings.Contains(s, "maximum context length") || strings.Contains(s, "context window"):
		return ReasonContextLengthExceeded
	case strings.Contains(s, "401") || strings.Contains(s, "403") || strings.Contains(s, "authentication") || strings.Contains(s, "invalid api key"):
		return ReasonAuthentication
	case strings.Contains(s, "model_not_found") || strings.Contains(s, "404") || strings.Contains(s, "does not exist"):
		return ReasonModelNotFound
	case strings.Contains(s, "400") || strings.Contains(s, "invalid_request") || strings.Contains(s, "bad request"):
		return ReasonInvalidRequest
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return ReasonTimeout
	case strings.Contains(s, "500") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "504") ||
		strings.Contains(s, "internal server error") || strings.Contains(s, "bad gateway") || strings.Contains(s, "service unavailable"):
		return ReasonServerError
	default:
		return ReasonAPIError
	}
}
