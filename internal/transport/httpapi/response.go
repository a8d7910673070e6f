package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"confesapp/backend/internal/service/confessions"
	"confesapp/backend/internal/transport/wire"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL_ERROR"
)

func success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func fail(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// writeError maps a service or binding error onto the envelope. Unclassified
// errors are logged and reported as a generic internal error.
func writeError(c *gin.Context, log *slog.Logger, op string, err error, attrs ...any) {
	var (
		fErr *wire.FieldError
		vErr *confessions.ValidationError
		cErr *confessions.ConflictError
		nErr *confessions.NotFoundError
	)
	args := append([]any{slog.Any("err", err)}, attrs...)

	if msg, ok := wire.ValidationMessage(err); ok {
		log.Warn("invalid request", args...)
		fail(c, http.StatusBadRequest, CodeValidation, msg)
		return
	}

	switch {
	case errors.As(err, &fErr):
		log.Warn("invalid request", args...)
		fail(c, http.StatusBadRequest, CodeValidation, fErr.Message)
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		fail(c, http.StatusBadRequest, CodeValidation, vErr.Error())
	case errors.As(err, &cErr):
		log.Info(op+" conflict", args...)
		fail(c, http.StatusConflict, CodeConflict, cErr.Error())
	case errors.As(err, &nErr):
		log.Info(op+" not found", args...)
		fail(c, http.StatusNotFound, CodeNotFound, nErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(op+" timed out", args...)
		fail(c, http.StatusGatewayTimeout, CodeTimeout, "request timed out")
	default:
		log.Error(op+" failed", args...)
		fail(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// bindError reports a body or query that could not be decoded or failed its
// binding rules.
func bindError(c *gin.Context, log *slog.Logger, err error) {
	if msg, ok := wire.ValidationMessage(err); ok {
		log.Warn("invalid request", slog.Any("err", err))
		fail(c, http.StatusBadRequest, CodeValidation, msg)
		return
	}
	log.Warn("invalid request", slog.Any("err", err), slog.String("reason", "malformed_body"))
	fail(c, http.StatusBadRequest, CodeValidation, "invalid request body")
}
