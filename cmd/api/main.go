package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proctoring/internal/auth"
	"proctoring/internal/config"
	"proctoring/internal/handler"
	"proctoring/internal/httpmiddleware"
	"proctoring/internal/proctor"
	"proctoring/internal/queue"
	"proctoring/internal/store"
	"proctoring/internal/tally"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

// openStore connects the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg config.App) (proctor.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return proctor.NewMemoryRepository(), nil
	case config.BackendMongo:
		client, err := store.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		repo := proctor.NewMongoRepository(client, cfg.MongoDatabase)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return repo, nil
	default:
		db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo := proctor.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return repo, nil
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	repo, err := openStore(startCtx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = repo.Close(closeCtx)
	}()
	logger.Info("store ready", "backend", cfg.StoreBackend)

	checks := map[string]handler.HealthCheck{"db": repo.Ping}

	var (
		q  queue.Queue
		tl tally.Tally
	)
	if cfg.QueueBackend == "memory" {
		// No worker can see an in-process queue, so tally here.
		mem := queue.NewInMemory(256)
		q = mem
		tl = tally.NewMemory()
		go func() {
			if err := tally.Consume(ctx, mem, tl, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("in-process tally stopped", "err", err)
			}
		}()
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
		tl = tally.NewRedisTally(redisClient.Client)
		checks["redis"] = func(ctx context.Context) error {
			if !redisClient.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}
	}

	svc := proctor.NewService(repo, repo, proctor.ServiceConfig{
		Logger:     logger,
		Publisher:  q,
		BcryptCost: cfg.BcryptCost,
	})
	h := handler.New(svc, handler.Options{
		Tally:           tl,
		Issuer:          auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL),
		SessionRequired: cfg.SessionRequired,
		Checks:          checks,
		Logger:          logger,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "session_required", cfg.SessionRequired)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "err", err)
	}
	logger.Info("server exited")
	return nil
}

// corsMiddleware reflects any origin and allows credentials.
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
