package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/bridge"
	"github.com/feral-file/ff-state-reducer/internal/config"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/providers/temporal"
	"github.com/feral-file/ff-state-reducer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadEventBridgeConfig(*configFile, *envPath)
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
		Service:         "event-bridge",
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Event Bridge")

	// The bridge only appends; it never reads from a replica
	db, err := store.Open(cfg.Database.DSN(), "")
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	temporalClient, err := temporal.Dial(temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	}, logger.Default())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()
	logger.InfoCtx(ctx, "Connected to Temporal", zap.String("namespace", cfg.Temporal.Namespace))

	connectionName := cfg.NATS.ConnectionName
	if connectionName == "" {
		connectionName = "event-bridge"
	}
	eventBridge, err := bridge.NewBridge(
		bridge.Config{
			URL:                cfg.NATS.URL,
			StreamName:         cfg.NATS.StreamName,
			ConsumerName:       cfg.NATS.ConsumerName,
			MaxReconnects:      cfg.NATS.MaxReconnects,
			ReconnectWait:      cfg.NATS.ReconnectWait,
			ConnectionName:     connectionName,
			AckWaitTimeout:     cfg.NATS.AckWait,
			MaxDeliver:         cfg.NATS.MaxDeliver,
			TemporalTaskQueue:  cfg.Temporal.TaskQueue,
			WorkflowRunTimeout: cfg.Temporal.WorkflowRunTimeout,
			WorkerPoolSize:     cfg.Worker.WorkerPoolSize,
			WorkerQueueSize:    cfg.Worker.WorkerQueueSize,
		},
		adapter.NewNatsJetStream(),
		dataStore,
		temporalClient,
	)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create event bridge", zap.Error(err))
	}
	defer eventBridge.Close()
	logger.InfoCtx(ctx, "Event bridge created",
		zap.String("stream", cfg.NATS.StreamName),
		zap.String("consumer", cfg.NATS.ConsumerName),
		zap.Strings("subjects", bridge.Subjects()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := eventBridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "bridge"))
	}
	cancel()

	// Let in-flight messages settle before the deferred Close drains the connection
	time.Sleep(time.Second)
	logger.Info("Event Bridge stopped")
}
