package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"pdf2html/internal/app"
	"pdf2html/internal/config"
	"pdf2html/internal/infra/logging"
	"pdf2html/internal/infra/postgres"
	"pdf2html/internal/infra/ratelimit"
	"pdf2html/internal/tokens"
)

func main() {
	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	deps := app.Deps{
		Storage: ratelimit.NewStore(ratelimit.RedisConfig{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RateLimitDB,
		}),
	}
	if cfg.Cache.RedisHost != "" && cfg.Cache.ResultCacheEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.ResultCacheDB,
		})
		defer rdb.Close()
		deps.Redis = rdb
	}

	if cfg.Auth.Postgres.Enabled() {
		dsn, err := postgres.DSN(cfg.Auth.Postgres)
		if err != nil {
			logging.Error("Invalid token database settings, API keys disabled", "error", err)
		} else {
			db := postgres.NewDB()
			defer db.Close()
			deps.Tokens = tokens.NewCache()
			tokens.NewReloader(postgres.NewTokenRepository(db, dsn), deps.Tokens, cfg.Auth.ReloadInterval).Start(ctx)
		}
	}

	logging.Info("Starting pdf2html",
		"addr", cfg.Server.Host+cfg.Server.Port,
		"binary", cfg.Converter.Binary,
		"max_concurrent", cfg.Converter.MaxConcurrent,
		"api_keys", deps.Tokens != nil,
		"result_cache", deps.Redis != nil,
	)

	idleConnsClosed := make(chan struct{})
	startServer(app.SetupApp(cfg, deps), cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
