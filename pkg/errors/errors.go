package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for every way an authorization or routing request can fail.
// Handlers map these to allow/deny responses; they never escape as panics.
var (
	ErrInvalidCredentials = NewError("INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized)
	ErrUnauthorizedTopic  = NewError("UNAUTHORIZED_TOPIC", "topic not authorized", http.StatusForbidden)
	ErrUnknownTenant      = NewError("UNKNOWN_TENANT", "unknown tenant", http.StatusNotFound)
	ErrUnknownSubScope    = NewError("UNKNOWN_SUBSCOPE", "unknown sub-scope", http.StatusNotFound)
	ErrInvalidTopic       = NewError("INVALID_TOPIC", "malformed topic", http.StatusBadRequest)
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrStorage            = NewError("STORAGE_ERROR", "backing store error", http.StatusServiceUnavailable)
	ErrInternal           = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
)

type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on the error code so wrapped copies built via WithCause or
// WithDetail still compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	var appErr *Error
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

// WithDetail returns a copy with the detail attached. The details map is
// cloned so sentinels stay immutable.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	err.Details[key] = value
	return &err
}

// Wrap attaches err as the cause of appErr, passing nil through untouched.
func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsInvalidCredentials(err error) bool { return code(err) == ErrInvalidCredentials.Code }

func IsUnauthorizedTopic(err error) bool { return code(err) == ErrUnauthorizedTopic.Code }

func IsUnknown(err error) bool {
	c := code(err)
	return c == ErrUnknownTenant.Code || c == ErrUnknownSubScope.Code
}

func IsInvalidTopic(err error) bool { return code(err) == ErrInvalidTopic.Code }

func IsStorage(err error) bool { return code(err) == ErrStorage.Code }

// Denial reports whether err is an expected authorization denial rather than
// an infrastructure fault. Denials are answered with "deny" and logged at
// info/warn; everything else is logged at error.
func Denial(err error) bool {
	c := code(err)
	switch c {
	case ErrInvalidCredentials.Code, ErrUnauthorizedTopic.Code,
		ErrUnknownTenant.Code, ErrUnknownSubScope.Code, ErrInvalidTopic.Code:
		return true
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

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
