package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paylink/internal/apperror"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequest(format string, args ...any) error {
	return apperror.New(apperror.ErrInvalidRequest, format, args...)
}

type errorKind struct {
	kind    error
	status  int
	typ     string
	message string
}

var errorKinds = []errorKind{
	{apperror.ErrInvalidRequest, http.StatusBadRequest, "invalid_request", "invalid request"},
	{apperror.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature", "invalid signature"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict", "conflict"},
	{apperror.ErrGone, http.StatusGone, "gone", "gone"},
	{apperror.ErrTooManyRequests, http.StatusTooManyRequests, "too_many_requests", "too many requests"},
	{apperror.ErrGatewayFailure, http.StatusBadGateway, "gateway_failure", "payment gateway failure"},
	{gorm.ErrRecordNotFound, http.StatusNotFound, "not_found", "not found"},
}

// mapError picks the status from the first matching kind. The message is
// the client-facing one carried by the error, when there is one.
func mapError(err error) (int, errorPayload) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.kind) {
			continue
		}
		msg := apperror.Message(err)
		if msg == "" {
			msg = k.message
		}
		return k.status, errorPayload{Type: k.typ, Message: msg}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog feeds the request logger.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		return "internal", payload.Type
	}
	return "client", payload.Type
}
