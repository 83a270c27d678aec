package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"entropy-gate.backend/internal/config"
	"entropy-gate.backend/internal/infrastructure/entropy"
	"entropy-gate.backend/internal/infrastructure/repositories"
	"entropy-gate.backend/internal/interfaces/http/handlers"
	"entropy-gate.backend/internal/interfaces/http/middleware"
	"entropy-gate.backend/internal/usecases"
	"entropy-gate.backend/pkg/jwt"
	"entropy-gate.backend/pkg/logger"
	"entropy-gate.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	// Initialize Logger
	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Initialize Redis. The gate degrades without it (limiter fails open,
	// key lookups go straight to the database) but does not refuse to boot.
	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database using GORM
	dsn := cfg.Database.URL()
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL via GORM")
	}

	// Initialize JWT service
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	apiKeyRepo := repositories.NewApiKeyRepository(db)
	securityEventRepo := repositories.NewSecurityEventRepository(db)
	usageRepo := repositories.NewUsageRepository(db)

	// Initialize usecases
	authUsecase := usecases.NewAuthUsecase(userRepo, jwtService)
	apiKeyUsecase := usecases.NewApiKeyUsecase(
		apiKeyRepo,
		cfg.Security.MaxKeysPerUser,
		cfg.Security.KeyCacheTTL,
		cfg.Security.RateLimitGlobal.Limit,
	)
	securityMonitor := usecases.NewSecurityMonitor(securityEventRepo, cfg.Security)
	usageUsecase := usecases.NewUsageUsecase(usageRepo)
	rateLimiter := usecases.NewRateLimiter(
		redis.GetClient,
		cfg.Security.RateLimitGlobal,
		cfg.Security.RateLimitRandom,
		cfg.Security.RateLimitStrict,
	)
	entropyClient := entropy.NewClient(cfg.Entropy.URL, cfg.Entropy.Timeout)
	randomUsecase := usecases.NewRandomUsecase(entropyClient)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authUsecase)
	apiKeyHandler := handlers.NewApiKeyHandler(apiKeyUsecase)
	randomHandler := handlers.NewRandomHandler(randomUsecase)
	securityHandler := handlers.NewSecurityHandler(securityMonitor)
	usageHandler := handlers.NewUsageHandler(usageUsecase)

	// Security pipeline shared by every gated route group
	pipeline := middleware.NewSecurityPipeline(
		securityMonitor,
		apiKeyUsecase,
		rateLimiter,
		usageUsecase,
		cfg.Security,
	)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.SecurityHeaders(cfg.Security.AllowedOrigins))

	registerHealthRoute(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerAPIV1Routes(r, routeDeps{
		authHandler:     authHandler,
		apiKeyHandler:   apiKeyHandler,
		randomHandler:   randomHandler,
		securityHandler: securityHandler,
		usageHandler:    usageHandler,
		pipeline:        pipeline,
		authMiddleware:  middleware.AuthMiddleware(jwtService),
	})

	// Print all registered routes for debugging
	log.Println("📋 Registered Routes:")
	for _, route := range r.Routes() {
		log.Printf("   %s %s", route.Method, route.Path)
	}

	// Start server
	log.Printf("🚀 Entropy Gate starting on port %s", cfg.Server.Port)
	log.Printf("📚 API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("❤️ Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "entropy-gate-backend",
			"version": "0.1.0",
		})
	})
}
