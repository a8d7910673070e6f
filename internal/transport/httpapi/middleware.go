package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"confesapp/backend/internal/auth"
)

const actorKey = "actor"

type tokenVerifier interface {
	Verify(token string) (auth.Actor, error)
}

// Authenticate requires a valid bearer token and stores the actor on both the
// gin and request contexts.
func Authenticate(v tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if errors.Is(err, auth.ErrMissingToken) {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}
		if err != nil {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "invalid authorization header")
			return
		}
		actor, err := v.Verify(token)
		if err != nil {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token")
			return
		}

		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(auth.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// RequireRole admits actors holding any of roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}
		if !actor.Is(roles...) {
			fail(c, http.StatusForbidden, CodeForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) (auth.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return auth.Actor{}, false
	}
	actor, ok := v.(auth.Actor)
	return actor, ok
}

// RequestLogger logs one line per request, at Error for 5xx responses.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	log = log.With(slog.String("component", "http"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if id := c.GetHeader("X-Request-ID"); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if actor, ok := actorFrom(c); ok {
			attrs = append(attrs, slog.String("actor_id", actor.ID), slog.String("role", string(actor.Role)))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request failed", attrs...)
			return
		}
		log.Info("request", attrs...)
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	log = log.With(slog.String("component", "http"))
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error(
					"panic recovered",
					slog.String("err", fmt.Sprintf("%v", recovered)),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				fail(c, http.StatusInternalServerError, CodeInternal, "internal error")
			}
		}()
		c.Next()
	}
}
