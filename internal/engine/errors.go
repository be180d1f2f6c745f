package engine

import (
	"fmt"

	"github.com/lex1olnk/mang2/internal/metadata"
)

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
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

func NotFoundError(model string, id any) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %v not found", model, id),
	}
}

func UnknownModelError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_MODEL",
		Status:  404,
		Message: fmt.Sprintf("Unknown model: %s", name),
	}
}

func UnknownPropertyError(model, name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_PROPERTY",
		Status:  400,
		Message: fmt.Sprintf("Unknown property %s on %s", name, model),
		Details: []ErrorDetail{{Field: name, Rule: "unknown", Message: "unknown property"}},
	}
}

func UnknownReferenceError(model, name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_REFERENCE",
		Status:  400,
		Message: fmt.Sprintf("Unknown reference %s on %s", name, model),
	}
}

func AccessDeniedError(model string, action metadata.Action) *AppError {
	return &AppError{
		Code:    "ACCESS_DENIED",
		Status:  403,
		Message: fmt.Sprintf("Access denied: %s on %s", action, model),
	}
}

func MalformedFilterError(format string, args ...any) *AppError {
	return &AppError{
		Code:    "MALFORMED_FILTER",
		Status:  400,
		Message: "Malformed filter: " + fmt.Sprintf(format, args...),
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Status:  401,
		Message: msg,
	}
}

func BadRequestError(msg string) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Status:  400,
		Message: msg,
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

// fieldError is a single-field validation failure.
func fieldError(field, rule, msg string) *AppError {
	return ValidationError([]ErrorDetail{{Field: field, Rule: rule, Message: msg}})
}

func violationsError(vs []metadata.Violation) *AppError {
	details := make([]ErrorDetail, len(vs))
	for i, v := range vs {
		details[i] = ErrorDetail{Field: v.Field, Rule: v.Rule, Message: v.Message}
	}
	return ValidationError(details)
}
