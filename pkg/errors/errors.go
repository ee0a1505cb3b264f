package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal           = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrForbidden          = NewError("FORBIDDEN", "forbidden", http.StatusForbidden)
	ErrServiceUnavailable = NewError("SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable)
	ErrTooManyRequests    = NewError("RATE_LIMITED", "rate limit exceeded", http.StatusTooManyRequests)

	ErrTaskNotFound  = NewError("TASK_NOT_FOUND", "task not found", http.StatusNotFound)
	ErrInvalidPeriod = NewError("INVALID_PERIOD", "invalid reference period", http.StatusBadRequest)
	ErrBillListing   = NewError("BILL_LISTING_FORBIDDEN", "listing bills is not allowed, ask for a subscriber", http.StatusForbidden)
)

// RetryableError is implemented by errors that say whether redelivery can help.
type RetryableError interface {
	error
	IsRetryable() bool
}

// FatalError is implemented by errors that must not be redelivered.
type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]any
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]any),
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so copies made by WithCause/WithDetail still compare
// equal to the sentinel they came from.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return e.Status >= http.StatusInternalServerError
}

func (e *Error) IsFatal() bool {
	return !e.IsRetryable()
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value any) *Error {
	err := *e
	err.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	err.Details[key] = value
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	return e.WithDetail("message", message)
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// IsFatal reports whether err, or anything it wraps, asks not to be retried.
func IsFatal(err error) bool {
	var fatalErr FatalError
	if errors.As(err, &fatalErr) {
		return fatalErr.IsFatal()
	}
	return false
}

func IsNotFound(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status == http.StatusNotFound
	}
	return false
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]any {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	msg := appErr.Message
	if detailMsg, ok := appErr.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	response := map[string]any{
		"detail":     msg,
		"error_code": appErr.Code,
	}

	details := make(map[string]any, len(appErr.Details))
	for k, v := range appErr.Details {
		if k == "message" || k == "stack_trace" {
			continue
		}
		details[k] = v
	}
	if len(details) > 0 {
		response["details"] = details
	}

	return response
}
