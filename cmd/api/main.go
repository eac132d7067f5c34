package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fz-pos-api/internal/backend"
	"fz-pos-api/internal/cache"
	"fz-pos-api/internal/config"
	"fz-pos-api/internal/handler"
	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/pos"
	"fz-pos-api/internal/repository"
	"fz-pos-api/internal/router"
	"fz-pos-api/internal/scanner"
	"fz-pos-api/internal/service"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.MustLoad()

	if err := logger.SetLogLevel(cfg.Log.Level); err != nil {
		logger.Log.Warnf("%v, using info", err)
	}
	if cfg.Log.JSON {
		logger.UseJSON()
	}
	logger.Log.Infof("Starting %s %s...", cfg.App.Name, cfg.App.Version)
	logger.Log.Infof("Environment: %s", cfg.App.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	auditRepo, err := repository.Open(ctx, &cfg.AuditDB)
	cancel()
	if err != nil {
		logger.Log.Fatalf("Failed to initialize %s audit store: %v", cfg.AuditDB.Type, err)
	}
	logger.Log.Infof("Audit repository initialized (%s)", cfg.AuditDB.Type)

	// Redis backs both the browse cache and the audit buffer when enabled
	var redisClient *redis.Client
	if cfg.Cache.Type == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		cancel()
		if err != nil {
			logger.Log.Warnf("Redis connection failed, falling back to memory cache: %v", err)
			redisClient = nil
		} else {
			logger.Log.Info("Redis client initialized")
		}
	}

	var browseCache cache.Cache
	var auditBuffer *cache.RedisAuditBuffer
	if redisClient != nil {
		browseCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix, false)
		auditBuffer = cache.NewRedisAuditBuffer(redisClient, cfg.Cache.KeyPrefix, cfg.Audit.FlushInterval, false, auditRepo.BatchInsert)
	} else {
		browseCache = cache.NewMemoryCache(time.Minute, clock.New())
	}

	// Services
	backendClient := backend.New(cfg.Backend)
	auditService := service.NewAuditService(auditRepo, auditBuffer)
	catalogService := service.NewCatalogService(backendClient, browseCache, cfg.Cache.TTL)

	sessions := service.NewSessionManager(pos.Deps{
		Catalog: backendClient,
		Orders:  backendClient,
		Audit:   auditService,
		Clock:   clock.New(),
		Options: posOptions(&cfg.POS),
	}, cfg.POS.SessionIdleTTL)

	cleanup := service.NewCleanupScheduler(auditService, sessions, service.CleanupConfig{
		Retention:       cfg.Audit.Retention,
		CleanupInterval: cfg.Audit.CleanupInterval,
		InitialDelay:    time.Minute,
	})
	cleanup.Start()

	// Handlers
	var checks []handler.ReadyCheck
	if redisClient != nil {
		checks = append(checks, handler.ReadyCheck{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	checks = append(checks, handler.ReadyCheck{
		Name: "audit_store",
		Probe: func(ctx context.Context) error {
			_, err := auditRepo.GetStats(ctx)
			return err
		},
	})

	r := router.New(router.Config{
		Handler:        handler.New(cfg.App.Version, sessions, checks...),
		SessionHandler: handler.NewSessionHandler(sessions),
		CatalogHandler: handler.NewCatalogHandler(catalogService),
		AdminHandler:   handler.NewAdminHandler(auditService, sessions, cleanup, cfg.AuditDB.Type),
		LogHandler:     handler.NewLogHandler(auditService),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Log.Infof("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Server shutdown error: %v", err)
	}

	cleanup.Stop()
	sessions.CloseAll()

	// Close the audit buffer before the store so pending entries are flushed
	if auditBuffer != nil {
		logger.Log.Info("Closing audit buffer...")
		if err := auditBuffer.Close(); err != nil {
			logger.Log.Errorf("Audit buffer close error: %v", err)
		}
	}
	if err := browseCache.Close(); err != nil {
		logger.Log.Errorf("Cache close error: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := auditRepo.Close(); err != nil {
		logger.Log.Errorf("Audit store close error: %v", err)
	}

	logger.Log.Info("Server stopped")
}

func posOptions(c *config.POSConfig) pos.Options {
	return pos.Options{
		Scanner: scanner.Options{
			ScanThreshold: c.ScanThreshold,
			IdleTimeout:   c.IdleTimeout,
			MinExecLength: c.MinExecLength,
			MinAutoLength: c.MinAutoLength,
			MinBareLength: c.MinBareLength,
			CodePrefix:    c.CodePrefix,
		},
		DedupWindow:  c.DedupWindow,
		PollInterval: c.PollInterval,
		ToastTTL:     c.ToastTTL,
		ToastLimit:   c.ToastLimit,
	}
}
