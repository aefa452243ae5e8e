package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/pkg/logger"
)

// Error kinds carried in the "error" field of failed responses.
const (
	KindValidationFailed = "VALIDATION_FAILED"
	KindUnauthenticated  = "UNAUTHENTICATED"
	KindForbidden        = "FORBIDDEN"
	KindNotFound         = "NOT_FOUND"
	KindConflict         = "CONFLICT"
	KindTooManyRequests  = "TOO_MANY_REQUESTS"
	KindInternal         = "INTERNAL"
)

// Response is the unified API response format.
type Response struct {
	Code    int          `json:"code"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
}

// FieldError describes one violated field of a rejected request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is a structured application error with HTTP status and error code.
type AppError struct {
	HTTPStatus int
	Code       int
	Kind       string
	Message    string
	Fields     []FieldError
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches another *AppError of the same kind, so callers can write
// errors.Is(err, response.ErrForbidden).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation   = &AppError{Kind: KindValidationFailed}
	ErrUnauthorized = &AppError{Kind: KindUnauthenticated}
	ErrForbidden    = &AppError{Kind: KindForbidden}
	ErrNotFound     = &AppError{Kind: KindNotFound}
	ErrConflict     = &AppError{Kind: KindConflict}
)

func newAppError(status int, kind, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Kind: kind, Message: msg}
}

func NewBadRequest(msg string) *AppError {
	return newAppError(http.StatusBadRequest, KindValidationFailed, msg)
}

// NewValidationFailed reports every violated field at once.
func NewValidationFailed(fields []FieldError) *AppError {
	err := newAppError(http.StatusBadRequest, KindValidationFailed, "validation failed")
	err.Fields = fields
	return err
}

func NewUnauthorized(msg string) *AppError {
	return newAppError(http.StatusUnauthorized, KindUnauthenticated, msg)
}

func NewForbidden(msg string) *AppError {
	return newAppError(http.StatusForbidden, KindForbidden, msg)
}

func NewNotFound(msg string) *AppError {
	return newAppError(http.StatusNotFound, KindNotFound, msg)
}

func NewConflict(msg string) *AppError {
	return newAppError(http.StatusConflict, KindConflict, msg)
}

func NewServerError(msg string) *AppError {
	return newAppError(http.StatusInternalServerError, KindInternal, msg)
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// NoContent sends an empty 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response. An *AppError anywhere in the chain decides
// the status and body; anything else is logged and reported as a 500 without
// leaking its text.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.HTTPStatus, Response{
			Code:    appErr.Code,
			Error:   appErr.Kind,
			Message: appErr.Message,
			Errors:  appErr.Fields,
		})
		return
	}

	logger.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("unhandled error")
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Code:    500,
		Error:   KindInternal,
		Message: "internal server error",
	})
}

func abort(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Error: kind, Message: msg})
}

func BadRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, KindValidationFailed, msg)
}

func Unauthorized(c *gin.Context, msg string) {
	abort(c, http.StatusUnauthorized, KindUnauthenticated, msg)
}

func Forbidden(c *gin.Context, msg string) {
	abort(c, http.StatusForbidden, KindForbidden, msg)
}

func NotFound(c *gin.Context, msg string) {
	abort(c, http.StatusNotFound, KindNotFound, msg)
}

func TooManyRequests(c *gin.Context, msg string) {
	abort(c, http.StatusTooManyRequests, KindTooManyRequests, msg)
}

func ServerError(c *gin.Context, msg string) {
	abort(c, http.StatusInternalServerError, KindInternal, msg)
}
