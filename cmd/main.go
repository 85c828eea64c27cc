package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/printops/mps-console/internal/config"
	"github.com/printops/mps-console/internal/handler"
	"github.com/printops/mps-console/internal/handler/middleware"
	"github.com/printops/mps-console/internal/repository/postgres"
	"github.com/printops/mps-console/internal/service"
	"github.com/printops/mps-console/internal/session"
	"github.com/printops/mps-console/internal/upstream"
	"github.com/printops/mps-console/pkg/blacklist"
	"github.com/printops/mps-console/pkg/jwt"
	"github.com/printops/mps-console/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}()
	log.Println("✓ Database connection established")

	// Initialize Redis client
	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}()
	log.Println("✓ Redis connection established")

	// Initialize session codec and cookie store
	codec, err := jwt.NewSessionCodec([]byte(cfg.Session.Secret), cfg.Session.SessionCookieTTL, "mps-console")
	if err != nil {
		log.Fatalf("Failed to initialize session codec: %v", err)
	}
	store := session.NewCookieStore(codec, cfg.Server.IsProduction(), cfg.Session.AccessCookieTTL, cfg.Session.RefreshCookieTTL)
	log.Println("✓ Session codec initialized")

	// Initialize upstream MPS client
	upstreamClient, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize upstream client: %v", err)
	}
	log.Printf("✓ Upstream MPS client initialized - %s", cfg.Upstream.BaseURL)

	// Initialize validator
	validate := validator.NewValidator()

	// Initialize repositories
	policyRepo := postgres.NewPolicyRepository(db)
	resourceTypeRepo := postgres.NewResourceTypeRepository(db)
	navigationRepo := postgres.NewNavigationRepository(db)

	// Initialize token blacklist service
	tokenBlacklist := blacklist.NewTokenBlacklist(redisClient)
	log.Println("✓ Token blacklist service initialized")

	// Initialize services
	authService := service.NewAuthService(upstreamClient, tokenBlacklist)
	policyService := service.NewPolicyService(policyRepo, resourceTypeRepo)
	assistant := service.NewAssistant(policyService, 2*time.Second)
	navService := service.NewNavigationService(navigationRepo, redisClient)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, store, validate)
	policyHandler := handler.NewPolicyHandler(policyService, assistant, validate)
	resourceTypeHandler := handler.NewResourceTypeHandler(resourceTypeRepo, validate)
	navigationHandler := handler.NewNavigationHandler(navService, validate)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Register Prometheus metrics
	middleware.RegisterMetrics()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "MPS Console v1.0",
		DisableStartupMessage: false,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
	})

	// Setup global middlewares
	app.Use(middleware.RecoveryMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CORSMiddleware(cfg.Server.AllowOrigins))
	app.Use(middleware.MetricsMiddleware())

	// Setup authorization middleware
	authMiddleware := middleware.AuthMiddleware(store, tokenBlacklist)

	// Setup routes
	handler.SetupRoutes(
		app,
		authHandler,
		policyHandler,
		resourceTypeHandler,
		navigationHandler,
		healthHandler,
		navService,
		authMiddleware,
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Keep the gateway's service-account session alive against the
	// MPS backend. The scheduler refreshes ahead of expiry and falls
	// back to polling when the backend is unreachable.
	if cfg.Upstream.ServiceUsername != "" {
		svcSession := service.NewServiceSession(upstreamClient, cfg.Upstream.ServiceUsername, cfg.Upstream.ServicePassword)
		if err := svcSession.Login(ctx); err != nil {
			log.Printf("Warning: service account login failed: %v", err)
		} else {
			log.Println("✓ Service account session established")
		}

		scheduler := session.NewScheduler(svcSession, svcSession, session.SchedulerConfig{
			Lead:         cfg.Scheduler.Lead,
			Floor:        cfg.Scheduler.Floor,
			PollInterval: cfg.Scheduler.PollInterval,
		})
		go scheduler.Run(ctx)
		log.Println("✓ Token refresh scheduler started")
	} else {
		log.Println("ℹ Service account disabled (set MPS_SERVICE_USERNAME to enable)")
	}

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("🚀 Server starting on http://localhost%s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		if err := app.Listen(addr); err != nil {
			// Don't use log.Fatalf in goroutine, send error to main
			log.Printf("❌ Server failed to start: %v", err)
			stop() // Trigger shutdown
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Println("⏳ Shutting down server gracefully...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server stopped")
}

// initDB initializes PostgreSQL database connection with retry logic
func initDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sqlx.DB
	var err error

	maxRetries := 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// initRedis initializes Redis client and verifies connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Printf("Error closing Redis after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// customErrorHandler handles Fiber errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Log error for debugging (sanitized)
	log.Printf("Error handling request [%s %s]: %v", c.Method(), c.Path(), err)

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
