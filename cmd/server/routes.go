package main

import (
	"github.com/gin-gonic/gin"

	"entropy-gate.backend/internal/interfaces/http/handlers"
	"entropy-gate.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	authHandler     *handlers.AuthHandler
	apiKeyHandler   *handlers.ApiKeyHandler
	randomHandler   *handlers.RandomHandler
	securityHandler *handlers.SecurityHandler
	usageHandler    *handlers.UsageHandler
	pipeline        *middleware.SecurityPipeline
	authMiddleware  gin.HandlerFunc
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	// Policy per route group. Auth on the random group is optional: a valid
	// key raises the caller's limit, no key means IP-scoped limiting.
	randomPolicy := middleware.RoutePolicy{
		ValidateOrigin:  true,
		RateLimitPolicy: "random",
		LogUsage:        true,
	}
	keyedRandomPolicy := middleware.RoutePolicy{
		RequireAuth:        true,
		RequiredPermission: "random:generate",
		ValidateOrigin:     true,
		RateLimitPolicy:    "random",
		LogUsage:           true,
	}
	adminPolicy := middleware.RoutePolicy{
		RequireSignature: true,
		RateLimitPolicy:  "strict",
	}
	sessionPolicy := middleware.RoutePolicy{
		RateLimitPolicy: "global",
	}

	v1 := r.Group("/api/v1")
	{
		// Auth routes (public, globally rate limited)
		auth := v1.Group("/auth")
		auth.Use(d.pipeline.Gate(sessionPolicy))
		{
			auth.POST("/register", d.authHandler.Register)
			auth.POST("/login", d.authHandler.Login)
			auth.GET("/me", d.authMiddleware, d.authHandler.GetMe)
		}

		// Random generation (the product surface)
		random := v1.Group("/random")
		{
			random.POST("/number", d.pipeline.Gate(randomPolicy), d.randomHandler.GenerateNumber)
			random.POST("/string", d.pipeline.Gate(randomPolicy), d.randomHandler.GenerateString)
			random.POST("/bytes", d.pipeline.Gate(keyedRandomPolicy), d.randomHandler.GenerateBytes)
			random.GET("/health", d.pipeline.Gate(sessionPolicy), d.randomHandler.SourceHealth)
		}

		// API key management (session JWT auth)
		keys := v1.Group("/keys")
		keys.Use(d.pipeline.Gate(sessionPolicy), d.authMiddleware)
		{
			keys.POST("", middleware.IdempotencyMiddleware(), d.apiKeyHandler.CreateApiKey)
			keys.GET("", d.apiKeyHandler.ListApiKeys)
			keys.PUT("/:id", d.apiKeyHandler.UpdateApiKey)
			keys.DELETE("/:id", d.apiKeyHandler.RevokeApiKey)
		}

		// Admin routes: signed requests plus an admin session
		admin := v1.Group("/admin")
		admin.Use(d.pipeline.Gate(adminPolicy), d.authMiddleware, middleware.RequireAdmin())
		{
			admin.GET("/security/stats", d.securityHandler.GetSecurityStats)
			admin.GET("/security/events", d.securityHandler.ListSecurityEvents)
			admin.POST("/security/block", d.securityHandler.BlockIP)
			admin.DELETE("/security/block/:ip", d.securityHandler.UnblockIP)
			admin.GET("/usage/stats", d.usageHandler.GetUsageStats)
		}
	}
}
