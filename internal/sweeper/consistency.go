package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

const (
	defaultBatchSize      = 100
	defaultWorkerPoolSize = 8
	defaultPassInterval   = 10 * time.Minute
)

// ConsistencySweeperConfig holds configuration for the consistency sweeper
type ConsistencySweeperConfig struct {
	BatchSize      int           // entity ids refreshed per kind and cycle
	WorkerPoolSize int           // concurrent refreshes
	PassInterval   time.Duration // pause once every kind has been swept end to end
	Kinds          []domain.EntityKind
}

// EventLog is the part of the store the sweeper pages through
type EventLog interface {
	ListEntityIDs(ctx context.Context, kind domain.EntityKind, afterID string, limit int) ([]string, error)
	store.CursorStore
}

// CycleStats summarizes one sweep cycle
type CycleStats struct {
	Refreshed int
	Failed    int
	// Completed is set when every kind reached the end of its ids and wrapped around
	Completed bool
}

// ConsistencySweeper re-reduces every entity that has events, a page per kind at a time,
// repairing entities whose reduction was missed or failed
type ConsistencySweeper struct {
	config    ConsistencySweeperConfig
	log       EventLog
	service   *updater.Service
	clock     adapter.Clock
	pool      pond.Pool
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewConsistencySweeper creates a new consistency sweeper
func NewConsistencySweeper(config ConsistencySweeperConfig, log EventLog, service *updater.Service, clock adapter.Clock) *ConsistencySweeper {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = defaultWorkerPoolSize
	}
	if config.PassInterval <= 0 {
		config.PassInterval = defaultPassInterval
	}
	if len(config.Kinds) == 0 {
		config.Kinds = service.Kinds()
	}

	return &ConsistencySweeper{
		config:    config,
		log:       log,
		service:   service,
		clock:     clock,
		pool:      pond.NewPool(config.WorkerPoolSize, pond.WithQueueSize(config.BatchSize)),
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *ConsistencySweeper) Name() string {
	return "consistency-sweeper"
}

// Start sweeps continuously, pausing after each complete pass
func (s *ConsistencySweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		s.pool.StopAndWait()
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting consistency sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("pass_interval", s.config.PassInterval),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Consistency sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Consistency sweeper stop requested")
			return nil
		default:
		}

		stats, err := s.SweepOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorCtx(ctx, err)
		}
		if stats.Completed || err != nil {
			s.sleep(ctx, s.config.PassInterval)
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *ConsistencySweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	logger.InfoCtx(ctx, "Stopping consistency sweeper")
	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Consistency sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Consistency sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// SweepOnce refreshes the next page of ids of every kind and advances the cursors
func (s *ConsistencySweeper) SweepOnce(ctx context.Context) (CycleStats, error) {
	startTime := s.clock.Now()
	stats := CycleStats{Completed: true}

	for _, kind := range s.config.Kinds {
		refreshed, failed, wrapped, err := s.sweepKind(ctx, kind)
		stats.Refreshed += refreshed
		stats.Failed += failed
		stats.Completed = stats.Completed && wrapped
		if err != nil {
			return stats, err
		}
	}

	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.Int("refreshed", stats.Refreshed),
		zap.Int("failed", stats.Failed),
		zap.Bool("pass_completed", stats.Completed),
		zap.Duration("duration", s.clock.Now().Sub(startTime)),
	)
	return stats, nil
}

func (s *ConsistencySweeper) sweepKind(ctx context.Context, kind domain.EntityKind) (int, int, bool, error) {
	cursor, err := s.log.GetSweepCursor(ctx, kind)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read %s sweep cursor: %w", kind, err)
	}

	ids, err := s.log.ListEntityIDs(ctx, kind, cursor, s.config.BatchSize)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to list %s ids after %q: %w", kind, cursor, err)
	}

	var refreshed, failed atomic.Int32
	group := s.pool.NewGroup()
	for _, id := range ids {
		ref := domain.EntityRef{Kind: kind, ID: id}
		group.Submit(func() {
			if _, err := s.service.Refresh(ctx, ref); err != nil {
				failed.Add(1)
				logger.WarnCtx(ctx, "Sweep refresh failed", zap.String("ref", ref.String()), zap.Error(err))
				return
			}
			refreshed.Add(1)
		})
	}
	if err := group.Wait(); err != nil {
		return int(refreshed.Load()), int(failed.Load()), false, err
	}

	next := ""
	wrapped := len(ids) < s.config.BatchSize
	if !wrapped {
		next = ids[len(ids)-1]
	}
	if err := s.saveCursor(ctx, kind, next); err != nil {
		return int(refreshed.Load()), int(failed.Load()), wrapped, err
	}

	return int(refreshed.Load()), int(failed.Load()), wrapped, nil
}

// saveCursor persists the cursor with exponential backoff; a lost cursor only repeats a page
func (s *ConsistencySweeper) saveCursor(ctx context.Context, kind domain.EntityKind, cursor string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second

	operation := func() error {
		return s.log.SetSweepCursor(ctx, kind, cursor)
	}
	notify := func(err error, d time.Duration) {
		logger.WarnCtx(ctx, "Saving sweep cursor failed, retrying",
			zap.String("kind", string(kind)),
			zap.Error(err),
			zap.Duration("retry_in", d),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("failed to save %s sweep cursor: %w", kind, err)
	}
	return nil
}

// sleep returns false if interrupted by ctx or Stop
func (s *ConsistencySweeper) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-s.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}
