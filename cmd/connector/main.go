package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/shopify-connector/internal/config"
	"github.com/Sternrassler/shopify-connector/internal/server"
	"github.com/Sternrassler/shopify-connector/pkg/client"
	"github.com/Sternrassler/shopify-connector/pkg/credentials"
	"github.com/Sternrassler/shopify-connector/pkg/logging"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
	"github.com/Sternrassler/shopify-connector/pkg/resources"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	srv, cleanup, err := build(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start connector")
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown requested")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}

// build wires the stores, the Shopify client and the HTTP server.
func build(cfg config.Config, logger zerolog.Logger) (*server.Server, func(), error) {
	clientCfg := client.DefaultConfig()
	clientCfg.APIVersion = cfg.APIVersion
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.MaxThrottleWait = cfg.MaxThrottleWait
	clientCfg.Timeout = cfg.RequestTimeout

	shopify, err := client.New(clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create shopify client: %w", err)
	}

	var (
		tokens  credentials.Store
		budgets ratelimit.StateStore
		cleanup = func() {}
	)

	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, connections and budgets are kept in memory")
		tokens = credentials.NewMemoryStore()
		budgets = ratelimit.NewMemoryStateStore()
	} else {
		redisClient, err := connectRedis(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("Connected to Redis")

		tokens = credentials.NewRedisStore(redisClient, logging.NewLogger("credentials"))
		budgets = ratelimit.NewRedisStateStore(redisClient, logging.NewLogger("ratelimit"))
		cleanup = func() { redisClient.Close() }
	}

	srv := server.New(server.Config{
		Addr:               cfg.Addr(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout:     cfg.RequestTimeout,
	}, resources.NewService(shopify, logging.NewLogger("resources")), tokens, budgets, logging.NewLogger("server"))

	logger.Info().
		Str("api_version", cfg.APIVersion).
		Str("user_agent", cfg.UserAgent).
		Dur("max_throttle_wait", cfg.MaxThrottleWait).
		Dur("request_timeout", cfg.RequestTimeout).
		Dur("throttle_wait_limit", cfg.ThrottleWaitLimit()).
		Msg("Connector configured")

	return srv, cleanup, nil
}

// connectRedis accepts a redis:// URL or a bare host:port.
func connectRedis(redisURL string) (*redis.Client, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}

	redisClient := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return redisClient, nil
}
