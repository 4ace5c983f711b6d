// Package apperr defines the HTTP error envelope shared by all handlers.
package apperr

import "fmt"

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(msg string) *AppError {
	return &AppError{Code: "NOT_FOUND", Status: 404, Message: msg}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func BadRequestError(msg string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Status: 400, Message: msg}
}

func ConflictError(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Status: 409, Message: msg}
}

// FileTooLargeError rejects oversized uploads before any remote call is made.
func FileTooLargeError(size, max int64) *AppError {
	return &AppError{
		Code:    "FILE_TOO_LARGE",
		Status:  413,
		Message: fmt.Sprintf("File too large: %d bytes (max %d)", size, max),
	}
}

// ServiceUnavailableError covers a dependency that is disabled or unreachable
// where an authoritative answer is required.
func ServiceUnavailableError(msg string) *AppError {
	return &AppError{Code: "SERVICE_UNAVAILABLE", Status: 503, Message: msg}
}

// ServiceError covers a dependency that responded with an unexpected shape.
func ServiceError(msg string) *AppError {
	return &AppError{Code: "SERVICE_ERROR", Status: 500, Message: msg}
}
