// Package response provides the unified JSON envelope for HTTP APIs.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/campus-qa/pkg/errors"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success).
	Code int `json:"code"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// Data contains the response payload (nil for errors).
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing.
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds).
	Timestamp int64 `json:"timestamp"`
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:      e.Code,
		Message:   e.Message(lang),
		Timestamp: time.Now().UnixMilli(),
	}
}

// OK writes a 200 response carrying data.
func OK(c *gin.Context, data any) {
	resp := Success(data)
	resp.RequestID = c.GetString(RequestIDKey)
	c.JSON(http.StatusOK, resp)
}

// Fail writes err as an Errno envelope with its HTTP status.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	resp := Err(e, c.GetHeader("Accept-Language"))
	resp.RequestID = c.GetString(RequestIDKey)
	c.JSON(e.HTTPStatus(), resp)
}

// Abort is Fail followed by c.Abort, for middleware.
func Abort(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}
