// Package errors defines the application error type returned by services and
// rendered by the HTTP layer. Each error carries a stable code, an HTTP
// status and an i18n key.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/yoozak/yoozak-backend/pkg/i18n"
)

// Sentinels for errors.Is checks across layers
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

type kind struct {
	sentinel error
	code     string
	key      string
	status   int
}

var (
	kindNotFound           = kind{ErrNotFound, "NOT_FOUND", "errors.not_found", http.StatusNotFound}
	kindUnauthorized       = kind{ErrUnauthorized, "UNAUTHORIZED", "errors.unauthorized", http.StatusUnauthorized}
	kindForbidden          = kind{ErrForbidden, "FORBIDDEN", "errors.forbidden", http.StatusForbidden}
	kindBadRequest         = kind{ErrBadRequest, "BAD_REQUEST", "errors.bad_request", http.StatusBadRequest}
	kindConflict           = kind{ErrConflict, "CONFLICT", "errors.conflict", http.StatusConflict}
	kindInternal           = kind{ErrInternal, "INTERNAL_ERROR", "errors.internal", http.StatusInternalServerError}
	kindValidation         = kind{ErrValidation, "VALIDATION_ERROR", "errors.validation_failed", http.StatusBadRequest}
	kindInvalidCredentials = kind{ErrInvalidCredentials, "INVALID_CREDENTIALS", "errors.invalid_credentials", http.StatusUnauthorized}
	kindTokenExpired       = kind{ErrTokenExpired, "TOKEN_EXPIRED", "errors.token_expired", http.StatusUnauthorized}
	kindTokenInvalid       = kind{ErrTokenInvalid, "TOKEN_INVALID", "errors.token_invalid", http.StatusUnauthorized}
	kindInsufficientStock  = kind{ErrInsufficientStock, "INSUFFICIENT_STOCK", "errors.insufficient_stock", http.StatusConflict}
	kindInvalidTransition  = kind{ErrInvalidTransition, "INVALID_TRANSITION", "errors.invalid_transition", http.StatusConflict}
)

func (k kind) new(message string, params map[string]string) *AppError {
	return &AppError{
		Err:        k.sentinel,
		Code:       k.code,
		Message:    message,
		MessageKey: k.key,
		Params:     params,
		StatusCode: k.status,
	}
}

// AppError is an error with an API code, an HTTP status and a message key
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"`
	Params     map[string]string `json:"-"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
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

// Localize renders the message in the request locale
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// WithDetails attaches field-level details to the response body
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// NotFound builds a 404 for a resource key such as "order" or "variant".
// Known keys are localized through the resources catalog.
func NotFound(resource string) *AppError {
	name := i18n.T("resources." + resource)
	if name == "resources."+resource {
		name = resource
	}
	return kindNotFound.new(resource+" not found", map[string]string{"resource": name})
}

func Unauthorized(message string) *AppError { return kindUnauthorized.new(message, nil) }

func Forbidden(message string) *AppError { return kindForbidden.new(message, nil) }

func BadRequest(message string) *AppError { return kindBadRequest.new(message, nil) }

func Conflict(message string) *AppError { return kindConflict.new(message, nil) }

func Internal(message string) *AppError { return kindInternal.new(message, nil) }

// Validation reports field errors keyed by JSON field name
func Validation(details map[string]string) *AppError {
	return kindValidation.new("validation failed", nil).WithDetails(details)
}

func InvalidCredentials() *AppError {
	return kindInvalidCredentials.new("invalid email or password", nil)
}

func TokenExpired() *AppError { return kindTokenExpired.new("token has expired", nil) }

func TokenInvalid() *AppError { return kindTokenInvalid.new("invalid token", nil) }

// InsufficientStock reports a movement line that would drive a variant below zero.
func InsufficientStock(variantID string, available, requested int) *AppError {
	params := map[string]string{
		"variant":   variantID,
		"available": strconv.Itoa(available),
		"requested": strconv.Itoa(requested),
	}
	msg := fmt.Sprintf("insufficient stock for variant %s (available: %d, requested: %d)", variantID, available, requested)
	return kindInsufficientStock.new(msg, params).WithDetails(params)
}

// InvalidTransition reports an order status change the workflow forbids.
func InvalidTransition(from, to string) *AppError {
	return kindInvalidTransition.new(
		fmt.Sprintf("transition from %s to %s is not allowed", from, to),
		map[string]string{"from": from, "to": to},
	)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
