package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0),
		http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))

	// ErrUnauthorized indicates a missing credential.
	ErrUnauthorized = Register(New(MakeCode(ServiceCommon, CategoryAuth, 0),
		http.StatusUnauthorized, codes.Unauthenticated, "Unauthorized", "未认证"))

	// ErrInvalidToken indicates a malformed or forged token.
	ErrInvalidToken = Register(New(MakeCode(ServiceCommon, CategoryAuth, 1),
		http.StatusUnauthorized, codes.Unauthenticated, "Invalid token", "令牌无效"))

	// ErrTokenExpired indicates an expired token.
	ErrTokenExpired = Register(New(MakeCode(ServiceCommon, CategoryAuth, 2),
		http.StatusUnauthorized, codes.Unauthenticated, "Token expired", "令牌已过期"))

	// ErrRouteNotFound is returned for unknown routes.
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 0),
		http.StatusNotFound, codes.NotFound, "Route not found", "路由不存在"))

	// ErrRateLimitExceeded indicates too many requests.
	ErrRateLimitExceeded = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 0),
		http.StatusTooManyRequests, codes.ResourceExhausted, "Rate limit exceeded", "请求过于频繁"))

	// ErrInternal indicates an unexpected server error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrPanic indicates a recovered panic.
	ErrPanic = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrDatabase indicates a database failure.
	ErrDatabase = Register(New(MakeCode(ServiceCommon, CategoryDatabase, 0),
		http.StatusInternalServerError, codes.Internal, "Database error", "数据库错误"))

	// ErrServiceUnavailable indicates a dependency is down.
	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 0),
		http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))

	// ErrTimeout indicates the request did not finish in time.
	ErrTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0),
		http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))
)
