package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// InvalidChat rejects a room that would pair a user with themselves.
func InvalidChat(message string) *AppError {
	return &AppError{
		Code:    "INVALID_CHAT",
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// RoomBlocked rejects sends into a room one of its members has blocked.
func RoomBlocked(message string) *AppError {
	return &AppError{
		Code:    "ROOM_BLOCKED",
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// FileNotAllowed rejects content carrying file extensions, data/blob URIs
// or image-host links. Chat is text-only by policy.
func FileNotAllowed(message string) *AppError {
	return &AppError{
		Code:    "FILE_NOT_ALLOWED",
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// InappropriateLanguage rejects content matching the profanity list.
func InappropriateLanguage(message string) *AppError {
	return &AppError{
		Code:    "INAPPROPRIATE_LANGUAGE",
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// Transient marks a timed-out or unavailable storage operation. Callers may
// retry.
func Transient(message string, err error) *AppError {
	return &AppError{
		Code:    "TRANSIENT",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    "TOO_MANY_REQUESTS",
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
