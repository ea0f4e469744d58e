// Package middleware provides the gin middleware shared by the HTTP server.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/campus-qa/pkg/id"
	ctxlog "github.com/kart-io/campus-qa/pkg/infra/logger"
	"github.com/kart-io/campus-qa/pkg/utils/response"
)

// HeaderXRequestID is the header carrying the request id.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestID reuses an incoming X-Request-ID or generates a ULID, and stores it
// in the response header, the gin context and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = id.NewULID()
		}

		c.Header(HeaderXRequestID, requestID)
		c.Set(response.RequestIDKey, requestID)
		ctx := ctxlog.WithRequestID(WithRequestID(c.Request.Context(), requestID), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the request id from ctx, or "".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
