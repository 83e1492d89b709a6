// Command relaychat runs the streaming chat proxy and its thread API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"relaychat/config"
	"relaychat/internal/chat"
	"relaychat/internal/httpclient"
	"relaychat/internal/providers"
	"relaychat/internal/ratelimit"
	"relaychat/internal/server"
	"relaychat/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := store.New(connectCtx, store.Config{
		URL:      cfg.MongoURL,
		Database: cfg.MongoDatabase,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			slog.Error("failed to close mongodb connection", "error", err)
		}
	}()

	var limiter server.RateLimiter
	if cfg.RedisURL != "" {
		redisClient, err := ratelimit.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			// The proxy is more useful rate-unlimited than down.
			slog.Warn("failed to connect to redis, rate limiting disabled", "error", err)
		} else {
			defer func() {
				_ = redisClient.Close() //nolint:errcheck
			}()
			limiter = ratelimit.New(redisClient, "ratelimit:chat", cfg.RateLimitRequests, cfg.RateLimitWindow)
			slog.Info("rate limiting enabled",
				"requests", cfg.RateLimitRequests, "window", cfg.RateLimitWindow)
		}
	} else {
		slog.Warn("REDIS_URL not set, rate limiting disabled")
	}

	providerClient := providers.New(httpclient.NewDefault(), providers.Config{
		DefaultProvider: cfg.DefaultProvider,
		Keys:            cfg.ProviderKeys,
		AppURL:          cfg.AppURL,
		AppName:         cfg.AppName,
	})

	conv := chat.NewConversation(st)
	titles := chat.NewTitleGenerator(providerClient, st, cfg.TitleModel)

	srv := server.New(server.Config{
		JWTSecret: cfg.JWTSecret,
		BodyLimit: cfg.BodyLimit,
	}, providerClient, conv, titles, st, limiter)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}
}

func setupLogging(cfg *config.Config) {
	var handler slog.Handler
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.Kitchen,
		})
	}
	slog.SetDefault(slog.New(handler))
}
