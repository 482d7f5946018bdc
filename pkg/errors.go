package pkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ExposeErrorDetails = false

func init() {
	if gin.DebugMode == gin.Mode() || gin.TestMode == gin.Mode() {
		ExposeErrorDetails = true
	}
}

// Reusable errors
var (
	ErrEmptyBody        = errors.New("no data received")
	ErrStoreUnavailable = errors.New("partition store unavailable")
)

// ErrorCode defines a standardized error code
type ErrorCode struct {
	Code    string
	Status  int
	Message string // default message
}

var (
	// Generic app
	ErrInvalidInputCode   = ErrorCode{Code: "APP_INVALID_INPUT", Status: http.StatusBadRequest, Message: "invalid input"}
	ErrServerCode         = ErrorCode{Code: "APP_INTERNAL", Status: http.StatusInternalServerError, Message: "internal server error"}
	ErrRecordNotFoundCode = ErrorCode{Code: "APP_NOT_FOUND", Status: http.StatusNotFound, Message: "no processed data found"}
	ErrRateLimitedCode    = ErrorCode{Code: "APP_RATE_LIMITED", Status: http.StatusTooManyRequests, Message: "too many upload requests"}

	// Storage layer
	ErrStorageCode        = ErrorCode{Code: "STORE_UNAVAILABLE", Status: http.StatusInternalServerError, Message: "store operation failed"}
	ErrStorageTimeoutCode = ErrorCode{Code: "STORE_TIMEOUT", Status: http.StatusInternalServerError, Message: "store operation timed out"}
)

type AppError struct {
	Code    ErrorCode
	Message string // public-facing message
	Cause   error  // internal cause (wrapped)
}

func (e AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}
func (e AppError) Unwrap() error { return e.Cause }

func NewAppError(code ErrorCode, msg string, cause error) error {
	return AppError{Code: code, Message: msg, Cause: cause}
}

// ErrorResponse defines the standardized error response format
type ErrorResponse struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ToErrorResponse converts an error into an ErrorResponse, logging details and optionally exposing error messages.
// If the error is not an AppError, it is converted to a generic 500 error.
func ToErrorResponse(logger *zap.Logger, traceID string, err error) ErrorResponse {
	var appErr AppError
	if errors.As(err, &appErr) {
		resp := ErrorResponse{
			Status:  appErr.Code.Status,
			Code:    appErr.Code.Code,
			Message: appErr.Message,
		}
		logger.Error("application error", zap.String(TraceId, traceID), zap.Error(err))
		if ExposeErrorDetails {
			resp.Details = err.Error()
		}
		return resp
	}
	// Unknown error : 500
	resp := ErrorResponse{
		Status:  ErrServerCode.Status,
		Code:    ErrServerCode.Code,
		Message: ErrServerCode.Message,
	}
	logger.Error("application error", zap.String(TraceId, traceID), zap.Error(err))
	if ExposeErrorDetails {
		resp.Details = err.Error()
	}
	return resp
}

// HandleStorageError maps store/redis errors -> AppError with proper codes/status
func HandleStorageError(traceID string, logger *zap.Logger, partition Partition, err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		logger.Warn("storage error : no records found",
			zap.String(TraceId, traceID),
			zap.String("partition", string(partition)),
		)
		return NewAppError(ErrRecordNotFoundCode, "no records found", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		logger.Error("storage error : timeout",
			zap.String(TraceId, traceID),
			zap.String("partition", string(partition)),
			zap.Error(err),
		)
		return NewAppError(ErrStorageTimeoutCode, "store operation timed out", err)
	default:
		logger.Error("storage error",
			zap.String(TraceId, traceID),
			zap.String("partition", string(partition)),
			zap.Error(err),
		)
		return NewAppError(ErrStorageCode, "store operation failed", err)
	}
}
