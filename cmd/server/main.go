package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "dramastream/watchservice/internal/api/http"
	"dramastream/watchservice/internal/app"
	"dramastream/watchservice/internal/metrics"
	"dramastream/watchservice/internal/providers/dramabox"
	mongorepo "dramastream/watchservice/internal/repository/mongo"
	"dramastream/watchservice/internal/telemetry"
	"dramastream/watchservice/internal/watch"
)

const (
	serviceName    = "drama-watch"
	serviceVersion = "1.0.0"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, serviceVersion)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("catalogBaseURL", cfg.CatalogBaseURL),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasMongo", cfg.ProgressEnabled()),
		slog.Duration("cacheTTL", cfg.CacheTTL),
		slog.Int("warmBooks", len(cfg.WarmBookIDs)),
	)

	catalogClient := dramabox.NewClient(dramabox.Config{
		BaseURL:   cfg.CatalogBaseURL,
		UserAgent: cfg.UserAgent,
		Client: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})

	watchService := watch.NewService(catalogClient, cfg.RequestTimeout, buildServiceOptions(cfg, logger)...)

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithRateLimit(float64(cfg.RateLimitRPS), cfg.RateLimitBurst),
		apihttp.WithImageProxyMaxBytes(cfg.ImageProxyMaxBytes),
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ProgressEnabled() {
		progressRepo, err := connectProgressStore(rootCtx, cfg, logger)
		if err != nil {
			logger.Error("mongo connect failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		serverOpts = append(serverOpts, apihttp.WithProgressStore(progressRepo))
	} else {
		logger.Info("mongo not configured, watch progress disabled")
	}

	handler := apihttp.NewServer(watchService, serverOpts...).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The image proxy streams upstream bodies of unknown size. Keep the
		// write timeout disabled at the server level; the proxy client
		// carries its own timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	watchService.StartBackground(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("drama watch service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("drama watch service stopped")
}

func connectProgressStore(ctx context.Context, cfg app.Config, logger *slog.Logger) (*mongorepo.WatchProgressRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, err
	}

	repo := mongorepo.NewWatchProgressRepository(client, cfg.MongoDatabase)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}
	logger.Info("watch progress store connected", slog.String("database", cfg.MongoDatabase))
	return repo, nil
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildServiceOptions(cfg app.Config, logger *slog.Logger) []watch.ServiceOption {
	var opts []watch.ServiceOption

	if len(cfg.WarmBookIDs) > 0 {
		opts = append(opts, watch.WithWarmBooks(cfg.WarmBookIDs))
	}
	if cfg.WarmInterval > 0 {
		opts = append(opts, watch.WithWarmInterval(cfg.WarmInterval))
	}
	if cfg.WarmMaxConcurrent > 0 {
		opts = append(opts, watch.WithWarmConcurrency(cfg.WarmMaxConcurrent))
	}
	if cfg.CacheMaxEntries > 0 {
		opts = append(opts, watch.WithCacheMaxEntries(cfg.CacheMaxEntries))
	}

	if cfg.CacheDisabled {
		opts = append(opts, watch.WithCacheDisabled(true))
		return opts
	}

	if cfg.CacheTTL > 0 {
		opts = append(opts, watch.WithCacheTTL(cfg.CacheTTL))
	}
	if cfg.CacheStaleGrace > 0 {
		opts = append(opts, watch.WithCacheStaleGrace(cfg.CacheStaleGrace))
	}

	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
		opts = append(opts, watch.WithRedisCache(watch.NewRedisCacheBackend(redisClient, cfg.RedisKeyPrefix)))
	}

	return opts
}
