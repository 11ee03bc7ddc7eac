package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/cache"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	actorKey                = "actor"
	IdempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotent-Replayed"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (authz.Actor, error)
}

// RequireAuth resolves the bearer token into an actor and stores it both on
// the gin context and on the request context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondError(c, fmt.Errorf("%w: authorization header is required", domain.ErrUnauthorized))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			respondError(c, fmt.Errorf("%w: invalid authorization header format", domain.ErrUnauthorized))
			return
		}

		actor, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(authz.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func currentActor(c *gin.Context) authz.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(authz.Actor); ok {
			return actor
		}
	}
	actor, _ := authz.ActorFrom(c.Request.Context())
	return actor
}

type HTTPMetrics interface {
	ObserveHTTP(method, route, status string, seconds float64)
}

// RequestLogger logs every request at a level picked by its status class.
func RequestLogger(logger *slog.Logger, metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if metrics != nil {
			metrics.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), latency.Seconds())
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", attrs...)
		default:
			logger.Debug("request handled", attrs...)
		}
	}
}

type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (*cache.StoredResponse, error)
	Complete(ctx context.Context, key string, resp cache.StoredResponse) error
	Release(ctx context.Context, key string) error
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the first response produced for an Idempotency-Key.
// Requests without the header pass through. Responses with a 5xx status
// release the key so the client may retry.
func Idempotency(store IdempotencyStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 128 {
			badRequest(c, "Idempotency-Key must be at most 128 characters")
			return
		}

		scoped := fmt.Sprintf("%d:%s:%s", currentActor(c).UserID, c.FullPath(), key)
		ctx := c.Request.Context()

		stored, err := store.Begin(ctx, scoped)
		switch {
		case errors.Is(err, cache.ErrRequestInProgress):
			respondError(c, fmt.Errorf("%w: a request with this idempotency key is in progress", domain.ErrConflict))
			return
		case err != nil:
			logger.Warn("idempotency store unavailable", "error", err)
			c.Next()
			return
		case stored != nil:
			c.Header(idempotencyReplayHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		// The request context may already be canceled by the client.
		saveCtx := context.WithoutCancel(ctx)
		status := writer.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(saveCtx, scoped); err != nil {
				logger.Warn("release idempotency key", "error", err)
			}
			return
		}
		resp := cache.StoredResponse{
			Status:      status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		}
		if err := store.Complete(saveCtx, scoped, resp); err != nil {
			logger.Warn("store idempotent response", "error", err)
		}
	}
}
