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
	"github.com/feral-file/ff-state-reducer/internal/cache"
	"github.com/feral-file/ff-state-reducer/internal/config"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/messaging"
	"github.com/feral-file/ff-state-reducer/internal/providers/jetstream"
	"github.com/feral-file/ff-state-reducer/internal/registry"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/sweeper"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
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
		Service:         "sweeper",
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Sweeper")

	kinds := make([]domain.EntityKind, 0, len(cfg.Consistency.Kinds))
	for _, k := range cfg.Consistency.Kinds {
		kind, err := domain.ParseEntityKind(k)
		if err != nil {
			logger.FatalCtx(ctx, "Invalid consistency.kinds", zap.Error(err))
		}
		kinds = append(kinds, kind)
	}

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
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	dataStore := store.NewPGStore(db)
	clock := adapter.NewClock()

	// Repairs are real commits and reach every listener
	listeners := []updater.SnapshotListener{store.NewJournalListener(dataStore)}
	if cfg.NATS.URL != "" {
		publisher, err := jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.EntityStreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: "sweeper",
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
		listeners = append(listeners, cache.New(rc, cfg.Redis.KeyPrefix, cfg.Redis.SnapshotTTL))
	}

	updaterCfg, _ := cfg.Reducer.UpdaterConfig()
	service := registry.NewService(dataStore, registry.Config{
		Engine:      cfg.Reducer.EngineConfig(),
		Updater:     updaterCfg,
		Parallelism: cfg.Reducer.Parallelism,
	}, listeners...)

	consistencySweeper := sweeper.NewConsistencySweeper(sweeper.ConsistencySweeperConfig{
		BatchSize:      cfg.Consistency.BatchSize,
		WorkerPoolSize: cfg.Consistency.Worker.WorkerPoolSize,
		PassInterval:   cfg.Consistency.PassInterval,
		Kinds:          kinds,
	}, dataStore, service, clock)

	logger.InfoCtx(ctx, "Initialized consistency sweeper",
		zap.Int("batch_size", cfg.Consistency.BatchSize),
		zap.Int("worker_pool_size", cfg.Consistency.Worker.WorkerPoolSize),
		zap.Duration("pass_interval", cfg.Consistency.PassInterval),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := sweeper.Run(ctx, consistencySweeper, 5*time.Second); err != nil {
		logger.ErrorCtx(ctx, err)
	}
	cancel()
	logger.Info("Sweeper stopped")
}
