package main

import (
	"context"   // context package is needed for Redis operations and shutdown
	"errors"    // Server close detection
	"io"        // Closable notifiers
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"kolia/internal/api"        // Route table and handlers
	"kolia/internal/config"     // Custom package for configuration
	"kolia/internal/db"         // Database connection
	"kolia/internal/gateway"    // CinetPay client
	"kolia/internal/middleware" // Custom package for middleware
	"kolia/internal/notify"     // Buyer notifications
	"kolia/internal/service"    // Business services
	"kolia/internal/utils"      // Cache and validators

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}

	database, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if cfg.DBDriver == "sqlite" {
		if err := db.Migrate(database); err != nil {
			logrus.Fatalf("failed to migrate: %v", err)
		}
	}

	// Redis is optional; without it responses are simply not cached
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.WithError(err).Warn("Redis unavailable, caching disabled")
			redisClient = nil
		}
	}

	notifier := notify.New(cfg)
	if closer, ok := notifier.(io.Closer); ok {
		defer closer.Close()
	}
	gw := gateway.NewCinetPay(cfg.CinetPayAPIKey, cfg.CinetPaySiteID, cfg.CinetPayBaseURL)

	if err := utils.RegisterValidators(); err != nil {
		logrus.Fatalf("failed to register validators: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS(cfg.CORSOrigins), middleware.PrometheusMiddleware())

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	deps := &api.Deps{
		DB:        database,
		Cache:     utils.NewCache(redisClient),
		Orders:    service.NewOrderService(database, notifier, cfg),
		Payments:  service.NewPaymentService(database, gw, notifier, cfg),
		JWTSecret: cfg.JWTSecret,
		JWTTTL:    time.Duration(cfg.JWTTTL) * time.Hour,
		IsProd:    cfg.IsProd,
	}
	if err := api.Register(r, deps); err != nil {
		logrus.Fatalf("invalid route table: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithFields(logrus.Fields{"port": cfg.AppPort, "prod": cfg.IsProd}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Forced shutdown")
	}
	logrus.Info("Server stopped")
}
