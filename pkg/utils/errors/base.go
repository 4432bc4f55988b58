package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// ============================================================================
// Success
// ============================================================================

// OK represents a successful operation.
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

// ============================================================================
// Request Errors (Category: 01)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0),
		http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))

	// ErrMissingParam indicates a missing required parameter.
	ErrMissingParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2),
		http.StatusBadRequest, codes.InvalidArgument, "Missing required parameter", "缺少必需参数"))

	// ErrValidationFailed indicates validation failure.
	ErrValidationFailed = Register(New(MakeCode(ServiceCommon, CategoryRequest, 4),
		http.StatusBadRequest, codes.InvalidArgument, "Validation failed", "验证失败"))

	// ErrRequestTooLarge indicates the request body is too large.
	ErrRequestTooLarge = Register(New(MakeCode(ServiceCommon, CategoryRequest, 5),
		http.StatusRequestEntityTooLarge, codes.InvalidArgument, "Request body too large", "请求体过大"))

	// ErrMethodNotAllowed indicates the route exists but not for this method.
	ErrMethodNotAllowed = Register(New(MakeCode(ServiceCommon, CategoryRequest, 6),
		http.StatusMethodNotAllowed, codes.Unimplemented, "Method not allowed", "请求方法不允许"))
)

// ============================================================================
// Authentication Errors (Category: 02)
// ============================================================================

var (
	// ErrUnauthorized indicates missing or unusable credentials.
	ErrUnauthorized = Register(New(MakeCode(ServiceCommon, CategoryAuth, 0),
		http.StatusUnauthorized, codes.Unauthenticated, "Unauthorized", "未授权"))

	// ErrInvalidToken indicates a token that failed verification.
	ErrInvalidToken = Register(New(MakeCode(ServiceCommon, CategoryAuth, 1),
		http.StatusUnauthorized, codes.Unauthenticated, "Invalid or expired token", "令牌无效或已过期"))

	// ErrTokenExpired indicates an expired token.
	ErrTokenExpired = Register(New(MakeCode(ServiceCommon, CategoryAuth, 2),
		http.StatusUnauthorized, codes.Unauthenticated, "Token expired", "令牌已过期"))

	// ErrInvalidCredentials indicates a wrong username or password.
	ErrInvalidCredentials = Register(New(MakeCode(ServiceCommon, CategoryAuth, 3),
		http.StatusUnauthorized, codes.Unauthenticated, "Invalid credentials", "用户名或密码错误"))

	// ErrTokenRevoked indicates a revoked token.
	ErrTokenRevoked = Register(New(MakeCode(ServiceCommon, CategoryAuth, 4),
		http.StatusUnauthorized, codes.Unauthenticated, "Token revoked", "令牌已撤销"))
)

// ============================================================================
// Resource Errors (Category: 04)
// ============================================================================

// ErrNotFound indicates the resource was not found.
var ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 0),
	http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))

// ============================================================================
// Rate Limit Errors (Category: 06)
// ============================================================================

// ErrRateLimitExceeded indicates the caller exceeded its request budget.
var ErrRateLimitExceeded = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 1),
	http.StatusTooManyRequests, codes.ResourceExhausted, "Rate limit exceeded", "请求频率超限"))

// ============================================================================
// Internal Errors (Category: 07)
// ============================================================================

var (
	// ErrInternal indicates an internal server error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrPanic indicates a recovered panic.
	ErrPanic = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务异常"))
)

// ============================================================================
// Infrastructure Errors (Category: 08, 09, 11)
// ============================================================================

var (
	// ErrDatabase indicates a database error.
	ErrDatabase = Register(New(MakeCode(ServiceCommon, CategoryDatabase, 0),
		http.StatusInternalServerError, codes.Internal, "Database error", "数据库错误"))

	// ErrCache indicates a cache error.
	ErrCache = Register(New(MakeCode(ServiceCommon, CategoryCache, 0),
		http.StatusInternalServerError, codes.Internal, "Cache error", "缓存错误"))

	// ErrTimeout indicates an operation timeout.
	ErrTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0),
		http.StatusGatewayTimeout, codes.DeadlineExceeded, "Operation timeout", "操作超时"))
)
