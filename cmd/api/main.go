package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restopos/internal/api"
	"restopos/internal/config"
	"restopos/internal/database"
	"restopos/internal/domain"
	"restopos/internal/events"
	"restopos/internal/export"
	"restopos/internal/google"
	"restopos/internal/logging"
	"restopos/internal/metrics"
	"restopos/internal/repository"
	"restopos/internal/service"
	"restopos/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	cache := initCache(cfg, redisClient, &logger)
	eventBus := initEventBus(&logger)

	// a nil *SheetsWorker must not reach the interface
	var syncWorker domain.SyncWorker
	if w := initSheetsWorker(ctx, cfg, db, redisClient, &logger); w != nil {
		go w.Start(ctx)
		syncWorker = w
	}

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup"))
		go backups.Start(ctx)
	}

	catalog := service.NewCatalogService(db, logging.Component(&logger, "catalog"))
	if err := catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("load menu: %w", err)
	}

	svc := api.Services{
		Orders:   service.NewOrderService(db, cache, eventBus, syncWorker, logging.Component(&logger, "orders")),
		Catalog:  catalog,
		Revenue:  service.NewRevenueService(db, cfg.Location()),
		Exporter: export.NewRevenueExporter(cfg.Exports.Path, logging.Component(&logger, "export")),
		DB:       db,
	}

	startMetrics(ctx, cfg, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, db, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.RunHealthProbe(ctx, 0)
	}

	httpServer := api.NewHTTPServer(cfg.API, svc, logging.Component(&logger, "http"))

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if !cfg.Seed.Enabled || cfg.Seed.Path == "" {
		return db, nil
	}

	catalog, err := database.LoadCatalog(cfg.Seed.Path)
	if err != nil {
		db.Close()
		logger.Error().Err(err).Str("seed_path", cfg.Seed.Path).Msg("read seed catalog")
		return nil, err
	}
	seeded, err := db.Seed(ctx, catalog)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed database: %w", err)
	}
	logger.Info().Bool("seeded", seeded).Str("seed_path", cfg.Seed.Path).Msg("seed catalog checked")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.ActiveOrderCache {
	memory := repository.NewMemoryActiveOrderCache(cfg.Cache.ActiveOrderTTL)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverActiveOrderCache(
		repository.NewRedisActiveOrderCache(redisClient, cfg.Cache.ActiveOrderTTL),
		memory,
		logging.Component(logger, "cache"),
	)
}

func initEventBus(logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	eventLogger := logging.Component(logger, "events")
	bus.Subscribe(func(event *events.Event) error {
		var payload events.OrderEventPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		eventLogger.Debug().
			Str("event_type", event.Type).
			Int64("order_id", payload.OrderID).
			Str("table", payload.TableName).
			Str("status", payload.Status).
			Int64("total", payload.Total).
			Msg("ledger event")
		return nil
	}, events.LedgerEvents...)
	return bus
}

func initSheetsWorker(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) *worker.SheetsWorker {
	if !cfg.Google.Enabled() {
		logger.Info().Msg("google sheets not configured, order export disabled")
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google, cfg.Location())
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		// keep the worker: queued tasks retry once the sheet is reachable
		logger.Warn().Err(err).Msg("google sheets connection test failed")
	} else {
		logger.Info().Msg("google sheets connected")
	}

	return worker.NewSheetsWorker(
		db,
		sheetsService,
		redisClient,
		worker.RetryPolicyFromConfig(cfg.Sync),
		cfg.Sync.PollInterval,
		logging.Component(logger, "sheets-worker"),
	)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
