package api

import (
	"shopflow/internal/metrics"
	"shopflow/internal/middleware"
	"shopflow/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(queueHandler *QueueHandler, productHandler *ProductHandler, authHandler *AuthHandler, clientRepo repository.ClientRepository, rdb *redis.Client, requestsPerSecond int, env string) *gin.Engine {
	r := gin.New()

	// Bypass storefront API key auth for load testing
	bypassAuth := env == "loadtest"

	// Global Middleware
	r.Use(
		middleware.CorsMiddleware(),
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
		middleware.TraceMiddleware(),
	)
	r.SetTrustedProxies(nil)

	// Public Routes
	r.GET("/health", queueHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Auth Routes (Public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Auth Routes (Protected)
	authProtected := r.Group("/v1/auth")
	authProtected.Use(middleware.JWTMiddleware(true))
	{
		authProtected.GET("/me", authHandler.GetProfile)
		authProtected.POST("/logout", authHandler.Logout)
	}

	// Storefront Routes (Protected by API Key): price display, inventory browsing
	store := r.Group("/v1/store")
	store.Use(middleware.APIKeyMiddleware(clientRepo, bypassAuth))
	{
		store.GET("/products", productHandler.ListProducts)
		store.GET("/products/:sku", productHandler.GetProduct)
		store.GET("/products/:sku/price", productHandler.GetPrice)
	}

	// Protected Routes (Control Plane)
	protected := r.Group("/v1")
	protected.Use(middleware.JWTMiddleware(true))

	// Rate Limiter for Write Operations
	writeLimiter := middleware.RateLimitMiddleware(rdb, requestsPerSecond)

	{
		protected.POST("/products", writeLimiter, productHandler.CreateProduct)
		protected.PATCH("/products/:sku", writeLimiter, productHandler.UpdateProduct)

		protected.POST("/queue/enqueue", writeLimiter, queueHandler.Enqueue)
		protected.POST("/queue/enqueue-bulk", writeLimiter, queueHandler.EnqueueBulk)
		protected.GET("/queue/failed", queueHandler.ListFailed)
		protected.GET("/queue/stuck", queueHandler.ListStuck)
		protected.POST("/queue/:id/requeue", writeLimiter, queueHandler.Requeue)
		protected.GET("/queue/stats", queueHandler.Stats)
	}
	return r
}
