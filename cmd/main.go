package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"stockdash/config"
	_ "stockdash/docs"
	"stockdash/internal/pkg/database"
	"stockdash/internal/pkg/docstore"
	"stockdash/internal/pkg/docstore/firestore"
	"stockdash/internal/pkg/docstore/memory"
	"stockdash/internal/pkg/docstore/mongo"
	"stockdash/internal/pkg/docstore/postgres"
	"stockdash/internal/pkg/docstore/redis"
	"stockdash/internal/pkg/logger"
	"stockdash/internal/pkg/middleware"
	"stockdash/internal/pkg/telemetry"
	"stockdash/internal/pkg/token"

	"stockdash/internal/api/auth"
	"stockdash/internal/api/product"
	"stockdash/internal/api/router"
	"stockdash/internal/api/session"
	"stockdash/internal/repository/productrepo"
	"stockdash/internal/service/authservice"
	"stockdash/internal/service/productservice"
	"stockdash/internal/workflow"
)

// @title stockdash API
// @version 1.0
// @description Product inventory administration: listing, add, partial update, delete and guided update sessions.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. Configuration
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading configuration from the environment only")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	appLog := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	appLog.Info("configuration loaded", map[string]interface{}{
		"env":    cfg.Environment,
		"driver": cfg.StoreDriver,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, appLog, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Probability: cfg.TraceSampleRatio,
	})
	if err != nil {
		appLog.Fatal("failed to initialise tracing", err)
	}

	// 2. Document store
	store, err := openStore(ctx, cfg)
	if err != nil {
		appLog.Fatal("failed to open document store", err)
	}
	defer store.Close()
	appLog.Info("document store ready", map[string]interface{}{
		"driver":     cfg.StoreDriver,
		"collection": cfg.StoreCollection,
	})

	// 3. Repository -> Service -> Handler
	productRepo := productrepo.NewProductRepository(store, cfg.DBTimeout)
	productSvc := productservice.NewService(productRepo, appLog)
	productHandler := product.NewHandler(productSvc, appLog)

	registry := workflow.NewRegistry(productRepo, appLog, cfg.UpdateSessionTTL)
	go registry.Run(ctx, time.Minute)
	sessionHandler := session.NewHandler(registry, appLog)

	opts := router.Options{
		Product: productHandler,
		Session: sessionHandler,
		Logger:  appLog,
	}

	if cfg.AuthEnabled() {
		tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
		authSvc := authservice.NewService(authservice.Credentials{
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
		}, tokenSvc, appLog)
		opts.Login = auth.NewHandler(authSvc, appLog)
		opts.Auth = middleware.NewAuthMiddleware(tokenSvc)
		appLog.Info("authentication enabled for mutating routes", nil)
	} else {
		appLog.Warn("JWT_SECRET_KEY not set, mutating routes are open", nil)
	}

	if cfg.RedisAddr != "" {
		rdb, closeRedis, err := rateLimitClient(ctx, cfg, store)
		if err != nil {
			appLog.Fatal("failed to connect to redis for rate limiting", err)
		}
		defer closeRedis()
		opts.RateLimit = middleware.RateLimiter(
			middleware.NewRedisCounter(rdb),
			cfg.RateLimitMaxRequests,
			cfg.RateLimitPeriod,
			appLog,
		)
		appLog.Info("rate limiting enabled", map[string]interface{}{
			"max_requests": cfg.RateLimitMaxRequests,
			"period":       cfg.RateLimitPeriod.String(),
		})
	}

	// 4. Server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(opts),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLog.Info("stockdash listening", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("server failed", err)
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutdown signal received", nil)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("forced server shutdown", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLog.Error("tracing shutdown failed", err)
	}
	appLog.Info("server stopped", nil)
}

// rateLimitClient reuses the store's connection when the store is redis and
// dials REDIS_ADDR otherwise. The returned func closes only what it opened.
func rateLimitClient(ctx context.Context, cfg *config.Config, store docstore.Store) (*goredis.Client, func() error, error) {
	if rs, ok := store.(*redis.Store); ok {
		return rs.Client(), func() error { return nil }, nil
	}
	rdb, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return rdb, rdb.Close, nil
}

// openStore connects the backend selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverFirestore:
		return firestore.New(ctx, firestore.Config{
			ProjectID:       cfg.FirestoreProjectID,
			Collection:      cfg.StoreCollection,
			CredentialsFile: cfg.FirestoreCredentialsFile,
			CredentialsJSON: cfg.FirestoreCredentialsJSON,
		})
	case config.DriverMongo:
		return mongo.New(ctx, mongo.Config{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.StoreCollection,
		})
	case config.DriverRedis:
		return redis.New(ctx, redis.Options{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			Collection: cfg.StoreCollection,
		})
	case config.DriverPostgres:
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, database.PoolConfig{})
		if err != nil {
			return nil, err
		}
		return postgres.New(db, cfg.StoreCollection), nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
