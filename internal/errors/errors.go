package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

type ErrorCode string

const (
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
	CodeTimeout        ErrorCode = "TIMEOUT"
)

var statusByCode = map[ErrorCode]int{
	CodeValidation:     http.StatusBadRequest,
	CodeBadRequest:     http.StatusBadRequest,
	CodeRateLimit:      http.StatusTooManyRequests,
	CodeServiceUnavail: http.StatusServiceUnavailable,
	CodeTimeout:        http.StatusGatewayTimeout,
}

// AppError is the error half of the response envelope.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(code ErrorCode, cause error, message string) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
		Timestamp:  time.Now().UTC(),
	}
}

func Internal(message string) *AppError {
	return newAppError(CodeInternal, nil, message)
}

func InternalWrap(err error, message string) *AppError {
	return newAppError(CodeInternal, err, message)
}

// ValidationWrap reports a filter that failed to decode or validate.
func ValidationWrap(err error, message string) *AppError {
	return newAppError(CodeValidation, err, message)
}

func BadRequestWrap(err error, message string) *AppError {
	return newAppError(CodeBadRequest, err, message)
}

func RateLimit(message string) *AppError {
	return newAppError(CodeRateLimit, nil, message)
}

// ServiceUnavailableWrap reports a sales source that could not be reached.
func ServiceUnavailableWrap(err error, message string) *AppError {
	return newAppError(CodeServiceUnavail, err, message)
}

func TimeoutWrap(err error, message string) *AppError {
	return newAppError(CodeTimeout, err, message)
}

type errorEnvelope struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

type successEnvelope struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

func writeEnvelope(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteError writes err as an error envelope. Anything that is not an
// AppError is reported as an internal error.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		appErr = InternalWrap(err, "An unexpected error occurred")
	}
	appErr.RequestID = requestID

	if encodeErr := writeEnvelope(w, appErr.StatusCode, errorEnvelope{Error: appErr}); encodeErr != nil {
		logger.Error("encode error response", "error", encodeErr, "request_id", requestID)
		return
	}

	level := slog.LevelError
	if appErr.StatusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "request failed",
		"error_code", appErr.Code,
		"status_code", appErr.StatusCode,
		"request_id", requestID,
		"cause", appErr.Cause,
	)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, successEnvelope{Data: data, Success: true})
}

func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	WriteSuccess(w, data)
}
