package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/cache"
	"github.com/feral-file/ff-state-reducer/internal/config"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/messaging"
	"github.com/feral-file/ff-state-reducer/internal/providers/jetstream"
	"github.com/feral-file/ff-state-reducer/internal/providers/temporal"
	"github.com/feral-file/ff-state-reducer/internal/registry"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/updater"
	"github.com/feral-file/ff-state-reducer/internal/workflows"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadWorkerCoreConfig(*configFile, *envPath)
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
		Service:         "worker-core",
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Worker Core")

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
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database", zap.Bool("read_replica", readDSN != ""))

	dataStore := store.NewPGStore(db)
	clock := adapter.NewClock()

	// Every committed change is journaled; publishing and caching are optional
	listeners := []updater.SnapshotListener{store.NewJournalListener(dataStore)}
	if cfg.NATS.URL != "" {
		publisher, err := jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.EntityStreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: "worker-core",
		}, adapter.NewNatsJetStream())
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create entity change publisher", zap.Error(err))
		}
		defer publisher.Close()
		listeners = append(listeners, messaging.NewChangeListener(publisher, clock))
	}
	if cfg.Redis.Enabled() {
		rc := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			logger.FatalCtx(ctx, "Failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}
		listeners = append(listeners, cache.New(rc, cfg.Redis.KeyPrefix, cfg.Redis.SnapshotTTL))
	}

	updaterCfg, _ := cfg.Reducer.UpdaterConfig()
	service := registry.NewService(dataStore, registry.Config{
		Engine:      cfg.Reducer.EngineConfig(),
		Updater:     updaterCfg,
		Parallelism: cfg.Reducer.Parallelism,
	}, listeners...)

	executor := workflows.NewExecutor(service, adapter.NewActivity())

	temporalClient, err := temporal.Dial(temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	}, logger.Default())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()
	logger.InfoCtx(ctx, "Connected to Temporal", zap.String("namespace", cfg.Temporal.Namespace))

	temporalWorker := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Temporal.MaxConcurrentActivityExecutionSize,
		WorkerActivitiesPerSecond:          cfg.Temporal.WorkerActivitiesPerSecond,
		MaxConcurrentActivityTaskPollers:   cfg.Temporal.MaxConcurrentActivityTaskPollers,
		Interceptors:                       []interceptor.WorkerInterceptor{temporal.NewSentryActivityInterceptor()},
	})

	wc := workflows.DefaultWorkerCoreConfig()
	if cfg.Temporal.ActivityTimeout > 0 {
		wc.ActivityTimeout = cfg.Temporal.ActivityTimeout
	}
	if cfg.Temporal.ActivityMaxAttempts > 0 {
		wc.MaxAttempts = cfg.Temporal.ActivityMaxAttempts
	}
	workerCore := workflows.NewWorkerCore(executor, wc)

	temporalWorker.RegisterWorkflow(workerCore.ReduceEntity)
	temporalWorker.RegisterWorkflow(workerCore.ReduceEntities)
	temporalWorker.RegisterActivity(executor.ReduceEntity)

	if err := temporalWorker.Start(); err != nil {
		logger.FatalCtx(ctx, "Failed to start worker", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Worker started",
		zap.String("taskQueue", cfg.Temporal.TaskQueue),
		zap.Int("listeners", len(listeners)),
		zap.String("tombstonePolicy", string(updaterCfg.Tombstone)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))

	temporalWorker.Stop()
	logger.Info("Worker Core stopped")
}
