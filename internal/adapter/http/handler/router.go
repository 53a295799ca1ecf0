package handler

import (
	"escrow-trade-service/internal/adapter/http/middleware"
	redisStore "escrow-trade-service/internal/adapter/storage/redis"
	"escrow-trade-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TradeSvc       ports.TradeService
	ReleaseSvc     ports.ReleaseService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	// API v1 routes
	v1 := r.Group("/api/v1")

	tradeHandler := NewTradeHandler(deps.TradeSvc, deps.ReleaseSvc)
	trades := v1.Group("/trades", jwtAuth)
	{
		trades.POST("", rl("trades_create"), tradeHandler.CreateTrade)
		trades.GET("", rl("reads"), tradeHandler.ListTrades)
		trades.GET("/:reference", rl("reads"), tradeHandler.GetTrade)
		trades.POST("/:reference/payment", rl("trades_action"), tradeHandler.ConfirmPayment)
		trades.POST("/:reference/cancel", rl("trades_action"), tradeHandler.CancelTrade)
		trades.POST("/:reference/release", rl("trades_action"), tradeHandler.InitiateRelease)
		trades.POST("/:reference/release/confirm", rl("release_confirm"), tradeHandler.ConfirmRelease)
		trades.POST("/:reference/dispute", rl("disputes"), tradeHandler.OpenDispute)
	}

	moderationHandler := NewModerationHandler(deps.TradeSvc)
	moderation := v1.Group("/moderation", jwtAuth, middleware.RequireModerator())
	{
		moderation.GET("/trades/:reference", rl("moderation"), moderationHandler.GetTrade)
		moderation.GET("/trades/:reference/events", rl("moderation"), moderationHandler.ListTradeEvents)
		moderation.POST("/trades/:reference/resolve", rl("moderation"), moderationHandler.ResolveDispute)
	}

	return r
}
