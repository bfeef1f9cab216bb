package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide between retrying, skipping
// a single video, or aborting the whole job.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
	KindTransientProvider Kind = "transient_provider"
	KindResourceNotFound  Kind = "resource_not_found"
	KindDownstreamService Kind = "downstream_service"
	KindConfiguration     Kind = "configuration"
)

type AppError struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func E(kind Kind, code int, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return E(KindInvalidInput, http.StatusBadRequest, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return E(KindNotFound, http.StatusNotFound, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return E(KindInternal, http.StatusInternalServerError, op, err, message)
}

// Transient marks a provider failure worth retrying with backoff.
func Transient(op string, err error, message string) *AppError {
	return E(KindTransientProvider, http.StatusServiceUnavailable, op, err, message)
}

// ResourceNotFound means a stage had nothing to work with (no captions, no
// audio). It is a valid terminal state for that stage, not a bug.
func ResourceNotFound(op string, err error, message string) *AppError {
	return E(KindResourceNotFound, http.StatusNotFound, op, err, message)
}

func Downstream(op string, err error, message string) *AppError {
	return E(KindDownstreamService, http.StatusBadGateway, op, err, message)
}

func Configuration(op string, err error, message string) *AppError {
	return E(KindConfiguration, http.StatusInternalServerError, op, err, message)
}

// KindOf returns the kind of the outermost AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether any AppError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Kind == kind {
			return true
		}
		err = appErr.Err
	}
	return false
}

func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

func IsTransient(err error) bool {
	return IsKind(err, KindTransientProvider)
}

func IsConfiguration(err error) bool {
	return IsKind(err, KindConfiguration)
}

// StatusCode maps err to an HTTP status, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
