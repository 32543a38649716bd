// Package main provides the main entry point for the device profile service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/handlers"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/middleware"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/router"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/scheduler"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/services"
	businessflow "github.com/Ashraf-Taha/zenrows-deviceprofiles/business_flow"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/config"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting device profile service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging points the standard logger at the configured sink with
// rotation handled by lumberjack
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotator)
	case "both":
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	// TranslateError maps driver unique violations onto gorm.ErrDuplicatedKey
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	// Seed the global template catalog
	if err := ensureSeedTemplates(db); err != nil {
		return nil, err
	}

	// Initialize repositories
	profileRepo := repository.NewDeviceProfileRepository(db)
	versionRepo := repository.NewDeviceProfileVersionRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)

	var idemStore repository.IdempotencyStore
	if rc != nil {
		idemStore = repository.NewRedisIdempotencyStore(rc, cfg.Cache.RedisPrefix, cfg.Idempotency.TTL())
	} else {
		idemStore = repository.NewIdempotencyRepository(db, cfg.Idempotency.TTL())

		// Redis expires records on its own; the database store needs a
		// periodic sweep to reclaim aged rows.
		if ttl := cfg.Idempotency.TTL(); ttl != nil && *ttl > 0 {
			janitor := scheduler.NewIdempotencyJanitor(db, *ttl, time.Hour, log.Default())
			stopFuncs = append(stopFuncs, janitor.Start(context.Background()))
		}
	}

	// Initialize services
	apiKeyService := services.NewAPIKeyService(apiKeyRepo, cfg.Security.BcryptCost)

	// Initialize flows
	profileFlow := businessflow.NewDeviceProfileFlow(profileRepo, idemStore, db)
	versionFlow := businessflow.NewProfileVersionFlow(profileRepo, versionRepo)

	// Initialize handlers
	profileHandler := handlers.NewDeviceProfileHandler(profileFlow, versionFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(apiKeyService, cfg.Security.APIKeyHeader)

	// Initialize router
	appRouter := router.NewFiberRouter(profileHandler, authMiddleware, db)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// seedTemplates is the built-in template catalog. Templates are owned by
// the system tenant and globally visible.
func seedTemplates(ownerID string) []*models.DeviceProfile {
	return []*models.DeviceProfile{
		{
			ID:         "tmpl_chrome_win",
			OwnerID:    ownerID,
			Name:       "Chrome on Windows",
			DeviceType: models.DeviceTypeDesktop,
			Width:      1920,
			Height:     1080,
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Country:    "us",
			IsTemplate: true,
			Visibility: models.VisibilityGlobal,
		},
		{
			ID:         "tmpl_iphone",
			OwnerID:    ownerID,
			Name:       "iPhone 15 Safari",
			DeviceType: models.DeviceTypeMobile,
			Width:      393,
			Height:     852,
			UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			Country:    "us",
			IsTemplate: true,
			Visibility: models.VisibilityGlobal,
		},
	}
}

// ensureSeedTemplates creates the system tenant and the built-in global
// templates when they are missing. Existing rows are left untouched.
func ensureSeedTemplates(db *gorm.DB) error {
	ctx := context.Background()

	systemUser := &models.User{
		ID:    "user_system",
		Email: "system@deviceprofiles.local",
	}
	if err := db.WithContext(ctx).FirstOrCreate(systemUser, models.User{ID: systemUser.ID}).Error; err != nil {
		return fmt.Errorf("failed to ensure system user: %w", err)
	}

	profileRepo := repository.NewDeviceProfileRepository(db)
	for _, tmpl := range seedTemplates(systemUser.ID) {
		var count int64
		err := db.WithContext(ctx).
			Model(&models.DeviceProfile{}).
			Where("id = ?", tmpl.ID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check template %s: %w", tmpl.ID, err)
		}
		if count > 0 {
			continue
		}
		if err := profileRepo.Create(ctx, tmpl, systemUser.ID); err != nil {
			return fmt.Errorf("failed to seed template %s: %w", tmpl.ID, err)
		}
	}

	return nil
}
