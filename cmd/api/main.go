package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/api/server"
	"github.com/feral-file/ff-state-reducer/internal/api/shared/executor"
	"github.com/feral-file/ff-state-reducer/internal/cache"
	"github.com/feral-file/ff-state-reducer/internal/config"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/messaging"
	"github.com/feral-file/ff-state-reducer/internal/providers/jetstream"
	"github.com/feral-file/ff-state-reducer/internal/providers/temporal"
	"github.com/feral-file/ff-state-reducer/internal/ratelimit"
	"github.com/feral-file/ff-state-reducer/internal/registry"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		Environment:     cfg.Environment,
		BreadcrumbLevel: zapcore.InfoLevel,
		Service:         "api-server",
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Feral File State Reducer API")

	var readDSN string
	if cfg.Database.ReadHost != "" {
		readDSN = cfg.Database.ReadDSN()
	}
	db, err := store.Open(cfg.Database.DSN(), readDSN)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database", zap.Bool("read_replica", readDSN != ""))

	dataStore := store.NewPGStore(db)
	clock := adapter.NewClock()

	// Synchronous refreshes commit changes too, so they notify the same listeners as the worker
	listeners := []updater.SnapshotListener{store.NewJournalListener(dataStore)}
	if cfg.NATS.URL != "" {
		publisher, err := jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.EntityStreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: "api-server",
		}, adapter.NewNatsJetStream())
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create entity change publisher", zap.Error(err))
		}
		defer publisher.Close()
		listeners = append(listeners, messaging.NewChangeListener(publisher, clock))
	}

	var (
		snapshotCache executor.SnapshotReader
		limiter       ratelimit.Limiter
	)
	if cfg.Redis.Enabled() {
		rc := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rc.Close()

		sc := cache.New(rc, cfg.Redis.KeyPrefix, cfg.Redis.SnapshotTTL)
		listeners = append(listeners, sc)
		snapshotCache = sc

		if cfg.RateLimit.Enabled {
			limiter, err = ratelimit.NewLimiter(cfg.RateLimit, rc, clock)
			if err != nil {
				logger.FatalCtx(ctx, "Failed to create rate limiter", zap.Error(err))
			}
		}
	} else if cfg.RateLimit.Enabled {
		logger.WarnCtx(ctx, "Rate limiting needs redis.addr, serving without it")
	}

	updaterCfg, _ := cfg.Reducer.UpdaterConfig()
	service := registry.NewService(dataStore, registry.Config{
		Engine:      cfg.Reducer.EngineConfig(),
		Updater:     updaterCfg,
		Parallelism: cfg.Reducer.Parallelism,
	}, listeners...)

	temporalClient, err := temporal.Dial(temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	}, logger.Default())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()
	logger.InfoCtx(ctx, "Connected to Temporal", zap.String("host_port", cfg.Temporal.HostPort))

	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}, executor.NewExecutor(service, snapshotCache, temporalClient, cfg.Temporal.TaskQueue), limiter)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
	}
	cancel()

	// ctx is canceled; shut down on a fresh one
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}
	logger.Info("API server stopped")
}
