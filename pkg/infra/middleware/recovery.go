package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/pkg/errors"
	"github.com/kart-io/campus-qa/pkg/utils/response"
)

// Recovery converts panics into an ErrPanic envelope.
// The stack trace is only included in the response when enableStackTrace is set.
func Recovery(enableStackTrace bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Errorw("panic recovered",
					"panic", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					"request_id", c.GetString(response.RequestIDKey),
					"stack", string(stack),
				)

				msg := fmt.Sprintf("panic: %v", r)
				if enableStackTrace {
					msg = fmt.Sprintf("panic: %v\n%s", r, stack)
				}
				response.Abort(c, errors.ErrPanic.WithMessage(msg))
			}
		}()
		c.Next()
	}
}
