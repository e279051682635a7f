package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/joshua-vybe/feedbridge/internal/breaker"
	"github.com/joshua-vybe/feedbridge/internal/bus"
	"github.com/joshua-vybe/feedbridge/internal/cache"
	"github.com/joshua-vybe/feedbridge/internal/config"
	"github.com/joshua-vybe/feedbridge/internal/gqlstream"
	"github.com/joshua-vybe/feedbridge/internal/metrics"
	"github.com/joshua-vybe/feedbridge/internal/poll"
	"github.com/joshua-vybe/feedbridge/internal/status"
	"github.com/joshua-vybe/feedbridge/internal/store"
	"github.com/joshua-vybe/feedbridge/internal/stream"
	"github.com/joshua-vybe/feedbridge/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestor.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger; replaced once the configured level is known.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingestor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Instance.LogLevel)); err != nil {
		logger.Warn("unknown log level, using info", "level", cfg.Instance.LogLevel)
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"brokers", cfg.Bus.Brokers,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	statusStore := status.NewPostgresStore(pool)
	if err := statusStore.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	logger.Info("database connected")

	// Latest-value cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, cache writes will be dropped", "error", err)
	}
	priceCache := cache.NewRedis(redisClient, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Event bus
	publisher := bus.NewKafkaPublisher(bus.KafkaConfig{
		Brokers: cfg.Bus.Brokers,
		Timeout: cfg.Bus.Timeout,
	}, m, logger)
	defer publisher.Close()

	// Status tracker, shared by the prediction market connectors.
	tracker := status.NewTracker(statusStore, publisher, logger)

	newBreaker := func(source string) *breaker.Breaker {
		return breaker.New(source,
			cfg.Breaker.FailureThreshold,
			cfg.Breaker.ResetTimeout,
			breaker.WithLogger(logger),
			breaker.WithStateFunc(m.CircuitStateFunc(source)),
		)
	}

	type connector interface {
		Start(ctx context.Context) error
		Stop(ctx context.Context) error
	}
	var connectors []connector

	cryptoConn := poll.New(poll.Config{
		Interval:        cfg.Crypto.PollInterval,
		CacheTTL:        cfg.Crypto.CacheTTL,
		AssetIDs:        cfg.Crypto.Assets,
		PrimaryURL:      cfg.Crypto.PrimaryURL,
		SecondaryURL:    cfg.Crypto.SecondaryURL,
		SecondaryAPIKey: cfg.Crypto.SecondaryAPIKey,
	}, publisher, priceCache, newBreaker(poll.Source), m, logger)
	connectors = append(connectors, cryptoConn)

	if len(cfg.Kalshi.WSEndpoints) > 0 {
		kalshiConn := stream.New(stream.Config{
			WSEndpoints:      cfg.Kalshi.WSEndpoints,
			RESTEndpoints:    cfg.Kalshi.RESTEndpoints,
			AuthToken:        cfg.Kalshi.AuthToken,
			Markets:          cfg.Kalshi.Markets,
			ConnectTimeout:   cfg.Kalshi.ConnectTimeout,
			PingInterval:     cfg.Kalshi.PingInterval,
			FallbackInterval: cfg.Kalshi.FallbackInterval,
			CacheTTL:         cfg.Kalshi.CacheTTL,
			Reconnect:        cfg.Reconnect.Policy(),
		}, publisher, priceCache, tracker, newBreaker(stream.Source), m, logger)
		connectors = append(connectors, kalshiConn)
	}

	if len(cfg.Polymarket.WSEndpoints) > 0 {
		polyConn := gqlstream.New(gqlstream.Config{
			WSEndpoints:        cfg.Polymarket.WSEndpoints,
			RESTURL:            cfg.Polymarket.RESTURL,
			Markets:            cfg.Polymarket.Markets,
			ConnectTimeout:     cfg.Polymarket.ConnectTimeout,
			AckTimeout:         cfg.Polymarket.AckTimeout,
			PingInterval:       cfg.Polymarket.PingInterval,
			StatusPollInterval: cfg.Polymarket.StatusPollInterval,
			CacheTTL:           cfg.Polymarket.CacheTTL,
			Reconnect:          cfg.Reconnect.Policy(),
		}, publisher, priceCache, tracker, newBreaker(gqlstream.Source), m, logger)
		connectors = append(connectors, polyConn)
	}

	// Metrics and health server
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthHandler(pool))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Start connectors
	for _, conn := range connectors {
		if err := conn.Start(ctx); err != nil {
			logger.Error("failed to start connector", "error", err)
			cancel()
			os.Exit(1)
		}
	}

	logger.Info("ingestor running",
		"instance_id", cfg.Instance.ID,
		"connectors", len(connectors),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, conn := range connectors {
		if err := conn.Stop(shutdownCtx); err != nil {
			logger.Warn("connector stop", "error", err)
		}
	}
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("ingestor stopped")
}

// healthHandler reports process health and database reachability.
func healthHandler(pinger interface {
	Ping(ctx context.Context) error
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string            `json:"status"`
			Components map[string]string `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]string),
		}

		if err := pinger.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = "disconnected: " + err.Error()
		} else {
			health.Components["postgres"] = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
