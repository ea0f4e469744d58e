// Package auth provides bearer token authentication middleware.
package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/pkg/auth/jwt"
	"github.com/kart-io/campus-qa/pkg/errors"
	"github.com/kart-io/campus-qa/pkg/utils/response"
)

const authScheme = "Bearer"

// Verifier 校验令牌并返回声明。
type Verifier interface {
	Verify(ctx context.Context, token string) (*jwt.Claims, error)
}

type claimsKey struct{}

// Auth 要求请求携带 "Authorization: Bearer <token>"，校验失败时以 401 中止。
// 校验通过的声明写入请求 context。
func Auth(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			response.Abort(c, errors.ErrInternal.WithMessage("authenticator not configured"))
			return
		}

		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Abort(c, errors.ErrUnauthorized.WithMessage("missing authentication token"))
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logAuthFailure(c, token, err)
			response.Abort(c, err)
			return
		}

		logger.Infow("authentication successful",
			"subject", claims.Subject,
			"path", c.Request.URL.Path,
		)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), claimsKey{}, claims))
		c.Next()
	}
}

// ClaimsFromContext 返回 Auth 写入的声明，不存在时返回 nil。
func ClaimsFromContext(ctx context.Context) *jwt.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*jwt.Claims)
	return claims
}

// extractToken 去掉认证方案前缀并规范化 base64url 字符。
func extractToken(header string) string {
	token := strings.TrimSpace(header)
	if !strings.HasPrefix(token, authScheme+" ") {
		return ""
	}
	token = strings.TrimPrefix(token, authScheme+" ")

	token = strings.ReplaceAll(token, " ", "")
	token = strings.ReplaceAll(token, "+", "-")
	token = strings.ReplaceAll(token, "/", "_")
	return strings.TrimRight(token, "=")
}

// logAuthFailure 记录认证失败，只输出令牌前缀。
func logAuthFailure(c *gin.Context, token string, err error) {
	req := c.Request

	tokenPrefix := ""
	if len(token) > 20 {
		tokenPrefix = token[:20] + "..."
	} else if len(token) > 0 {
		tokenPrefix = token[:len(token)/2] + "..."
	}

	logger.Warnw("authentication failed",
		"error", err.Error(),
		"remote_addr", req.RemoteAddr,
		"token_prefix", tokenPrefix,
		"path", req.URL.Path,
		"method", req.Method,
		"user_agent", req.UserAgent(),
	)
}
