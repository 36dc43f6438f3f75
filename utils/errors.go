package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in ErrorResponse.ErrorCode.
const (
	CodeBadRequest       = "bad_request"
	CodeInvalidInput     = "invalid_input"
	CodeInvalidSignature = "invalid_signature"
	CodeUnauthorized     = "unauthorized"
	CodeSessionExpired   = "session_expired"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeTooLarge         = "request_too_large"
	CodeRateLimited      = "rate_limit_exceeded"
	CodeIngestionFailed  = "ingestion_failed"
	CodeUpstream         = "upstream_error"
	CodeTimeout          = "timeout"
	CodeInternal         = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response. Quota and plan
// denials reuse it with their own codes.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   gin.H  `json:"details,omitempty"`
}

func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details gin.H) {
	c.JSON(statusCode, ErrorResponse{ErrorCode: errorCode, Message: message, Details: details})
}

// AbortWithError writes the error and stops the remaining handlers. Middleware
// uses it.
func AbortWithError(c *gin.Context, statusCode int, errorCode, message string, details gin.H) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{ErrorCode: errorCode, Message: message, Details: details})
}

func RespondWithBadRequest(c *gin.Context, message string, details gin.H) {
	RespondWithError(c, http.StatusBadRequest, CodeBadRequest, message, details)
}

func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, CodeForbidden, message, nil)
}

// RespondWithDenied reports a plan or quota refusal. code is the denial code,
// e.g. "plan_limit_reached" or "plan_forbidden".
func RespondWithDenied(c *gin.Context, code, reason string) {
	RespondWithError(c, http.StatusForbidden, code, reason, nil)
}

func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, CodeNotFound, message, nil)
}

func RespondWithTooLarge(c *gin.Context, message string, details gin.H) {
	RespondWithError(c, http.StatusRequestEntityTooLarge, CodeTooLarge, message, details)
}

// RespondWithInternalError hides the cause; log it before calling.
func RespondWithInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, CodeInternal, "Internal server error", nil)
}
