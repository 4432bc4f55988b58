// Package router 提供文档问答服务的路由注册。
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kart-io/docqa/docs/swagger" // swagger docs
	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/pkg/infra/middleware"
	"github.com/kart-io/docqa/pkg/infra/middleware/auth"
	"github.com/kart-io/docqa/pkg/infra/middleware/observability"
	"github.com/kart-io/docqa/pkg/infra/middleware/resilience"
	"github.com/kart-io/docqa/pkg/infra/middleware/security"
	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
)

// 路由级限流，每分钟请求数。
const (
	sessionWriteLimit = 20
	uploadLimit       = 10
	readLimit         = 30
)

// Handlers groups the API handlers.
type Handlers struct {
	Auth     *handler.AuthHandler
	Session  *handler.SessionHandler
	Document *handler.DocumentHandler
	QA       *handler.QAHandler
	Status   *handler.StatusHandler
}

// Config carries what the router needs besides the handlers.
type Config struct {
	Middleware *mwopts.Options
	RateLimit  *mwopts.RateLimitOptions
	// Redis backs the redis rate limit backend.
	Redis    goredis.UniversalClient
	Verifier auth.Verifier
	// Metrics may be nil when metrics are disabled.
	Metrics *metrics.Metrics
}

// redisPingTimeout bounds the reachability check of the redis backend.
const redisPingTimeout = 2 * time.Second

// Register attaches the middleware chain and every route to engine. The
// returned stop function releases the rate limiters and must be called on
// shutdown.
func Register(engine *gin.Engine, cfg *Config, h *Handlers) (func(), error) {
	logger.Info("Registering docqa routes...")

	mw := cfg.Middleware
	if mw == nil {
		mw = mwopts.NewOptions()
	}
	rl := cfg.RateLimit
	if rl == nil {
		rl = mwopts.NewRateLimitOptions()
	}
	backend := limiterBackend(rl, cfg.Redis)

	var built []resilience.RateLimiter
	stop := func() {
		for _, l := range built {
			resilience.StopRateLimiter(l)
		}
	}
	newLimiter := func(name string, limit int, window time.Duration) (resilience.RateLimiter, error) {
		limiter, err := resilience.NewRateLimiter(backend, limit, window, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("%s rate limiter: %w", name, err)
		}
		built = append(built, limiter)
		return limiter, nil
	}

	engine.Use(
		resilience.Recovery(nil),
		middleware.RequestID(*mw.RequestID),
		observability.Logger(*mw.Logger),
		security.SecurityHeaders(*mw.SecurityHeaders),
		security.CORS(*mw.CORS),
		resilience.BodyLimit(*mw.BodyLimit),
	)
	if rl.Enabled {
		limiter, err := newLimiter("global", rl.Requests, rl.GetWindow())
		if err != nil {
			stop()
			return nil, err
		}
		engine.Use(resilience.RateLimit(resilience.RateLimitConfig{
			Limiter:           limiter,
			Window:            rl.GetWindow(),
			KeyPrefix:         "global:",
			SkipPaths:         rl.SkipPaths,
			TrustProxyHeaders: rl.TrustProxyHeaders,
		}))
	}
	if cfg.Metrics != nil {
		engine.Use(observability.Metrics(cfg.Metrics))
	}

	limits := map[string]int{
		"create_session": sessionWriteLimit,
		"delete_session": sessionWriteLimit,
		"upload":         uploadLimit,
		"get_session":    readLimit,
		"ask":            readLimit,
		"ask_detailed":   readLimit,
	}
	limiters := make(map[string]gin.HandlerFunc, len(limits))
	for name, n := range limits {
		limiter, err := newLimiter(name, n, time.Minute)
		if err != nil {
			stop()
			return nil, err
		}
		limiters[name] = resilience.RateLimit(resilience.RateLimitConfig{
			Limiter:           limiter,
			Window:            time.Minute,
			KeyPrefix:         name + ":",
			TrustProxyHeaders: rl.TrustProxyHeaders,
		})
	}

	engine.GET("/", h.Status.Root)
	engine.GET("/health", h.Status.Health)
	engine.GET("/api/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/token", h.Auth.Token)

		// 监控路由（无需认证）
		if cfg.Metrics != nil {
			v1.GET("/metrics/prometheus", gin.WrapH(cfg.Metrics.Handler()))
		}
		v1.GET("/health/detailed", h.Status.DetailedHealth)
		v1.GET("/cache/stats", h.Status.CacheStats)
		v1.GET("/sessions/count", h.Session.Count)
		v1.GET("/models/status", h.Status.ModelsStatus)

		// 受保护路由
		secured := v1.Group("", auth.Bearer(cfg.Verifier))
		{
			secured.POST("/logout", h.Auth.Logout)
			secured.POST("/session", limiters["create_session"], h.Session.Create)
			secured.GET("/session/:session_id", limiters["get_session"], h.Session.Get)
			secured.DELETE("/session/:session_id", limiters["delete_session"], h.Session.Delete)
			secured.POST("/upload", limiters["upload"], h.Document.Upload)
			secured.POST("/ask", limiters["ask"], h.QA.Ask)
			secured.POST("/ask-detailed", limiters["ask_detailed"], h.QA.AskDetailed)
		}
	}

	logger.Infow("docqa routes registered", "routes", len(engine.Routes()), "rate_limit_backend", backend)
	return stop, nil
}

// limiterBackend picks the limiter backend. The configured one is used only
// while global limiting is enabled, and redis falls back to memory when the
// client is missing or does not answer a ping.
func limiterBackend(rl *mwopts.RateLimitOptions, client goredis.UniversalClient) string {
	if !rl.Enabled {
		return mwopts.RateLimitBackendMemory
	}
	if rl.Backend != mwopts.RateLimitBackendRedis {
		return rl.Backend
	}
	if client == nil {
		logger.Warn("Redis rate limit backend has no client, using memory")
		return mwopts.RateLimitBackendMemory
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("Redis rate limit backend unreachable, using memory", "error", err)
		return mwopts.RateLimitBackendMemory
	}
	return rl.Backend
}
