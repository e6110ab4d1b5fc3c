package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felipemchdev/policyforge-core/config"
	"github.com/felipemchdev/policyforge-core/handler"
	"github.com/felipemchdev/policyforge-core/middleware"
	"github.com/felipemchdev/policyforge-core/pkg/logger"
	"github.com/felipemchdev/policyforge-core/pkg/metrics"
	"github.com/felipemchdev/policyforge-core/ratelimit"
	"github.com/felipemchdev/policyforge-core/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded",
		"environment", cfg.Engine.Environment,
		"engine_configured", cfg.Engine.BaseURL != "",
	)
	if cfg.Engine.BaseURL == "" {
		// Not fatal: the gateway answers every engine call with a
		// not_configured error until the URL is set.
		slog.Warn("engine base URL is not set; engine endpoints will report ENGINE_NOT_CONFIGURED")
	}

	// Rate-limit counters: Redis when configured so replicas share windows,
	// otherwise process memory.
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		store = ratelimit.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		slog.Info("rate limiting backed by redis", "addr", cfg.Redis.Addr)
	}
	limiter := ratelimit.New(store, cfg.RateLimit.Limit, cfg.RateLimit.Window())

	engineClient := service.NewEngineClient(&cfg.Engine)
	engineHandler := handler.NewEngineHandler(engineClient, cfg)
	authHandler := handler.NewAuthHandler(cfg)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")

	engine := api.Group("/engine")
	if cfg.Auth.Enabled {
		api.POST("/auth/login", authHandler.Login)
		engine.Use(middleware.AuthMiddleware(&cfg.Auth))
		engine.GET("/auth/me", authHandler.GetCurrentUser)
	}

	engine.GET("/health", engineHandler.Health)

	requests := engine.Group("/requests")
	{
		requests.POST("", middleware.RateLimit("create-request", limiter), engineHandler.Submit)
		requests.GET("/:id", middleware.RateLimit("get-request", limiter), engineHandler.GetStatus)
		requests.GET("/:id/result", middleware.RateLimit("get-result", limiter), engineHandler.GetResult)
		requests.GET("/:id/artifacts/:type", middleware.RateLimit("get-artifact", limiter), engineHandler.GetArtifact)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers for browser clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
