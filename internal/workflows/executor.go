package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

// Executor defines the activities of the core worker
//
//go:generate mockgen -source=executor.go -destination=../mocks/executor_core.go -package=mocks -mock_names=Executor=MockCoreExecutor
type Executor interface {
	// ReduceEntity refreshes an entity through the update orchestrator
	ReduceEntity(ctx context.Context, ref domain.EntityRef) (*ReduceResult, error)
}

// ReduceResult is what a reduction committed
type ReduceResult struct {
	Kind    domain.EntityKind `json:"kind"`
	ID      string            `json:"id"`
	Version int64             `json:"version"`
	Deleted bool              `json:"deleted"`
	// Changed is false when the stored entity already matched its log
	Changed bool `json:"changed"`
}

type executor struct {
	service          *updater.Service
	temporalActivity adapter.Activity
}

// NewExecutor creates a new executor instance
func NewExecutor(service *updater.Service, temporalActivity adapter.Activity) Executor {
	return &executor{
		service:          service,
		temporalActivity: temporalActivity,
	}
}

// ReduceEntity refreshes one entity.
// Unknown kinds, malformed ids and ids without events fail without retry;
// exhausted optimistic retries are left to the activity retry policy.
func (e *executor) ReduceEntity(ctx context.Context, ref domain.EntityRef) (*ReduceResult, error) {
	info := e.temporalActivity.GetInfo(ctx)

	before, err := e.service.Get(ctx, ref)
	if err != nil && !errors.Is(err, domain.ErrEntityNotFound) {
		return nil, classify(err)
	}

	snapshot, err := e.service.Refresh(ctx, ref)
	if err != nil {
		if updater.IsRetryable(err) {
			logger.WarnCtx(ctx, "Entity reduction lost every optimistic attempt",
				zap.String("ref", ref.String()),
				zap.Int32("activityAttempt", info.Attempt))
		}
		return nil, classify(err)
	}

	logger.InfoCtx(ctx, "Entity reduced",
		zap.String("ref", ref.String()),
		zap.Int64("version", snapshot.Version),
		zap.Int32("activityAttempt", info.Attempt))

	return &ReduceResult{
		Kind:    snapshot.Kind,
		ID:      snapshot.ID,
		Version: snapshot.Version,
		Deleted: snapshot.Deleted,
		Changed: snapshot.Version != before.Version,
	}, nil
}

// classify turns validation failures into non-retryable application errors
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownEntityKind):
		return temporal.NewNonRetryableApplicationError(err.Error(), "UnknownEntityKind", err)
	case errors.Is(err, domain.ErrInvalidEntityID):
		return temporal.NewNonRetryableApplicationError(err.Error(), "InvalidEntityID", err)
	case errors.Is(err, domain.ErrEntityNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), "EntityNotFound", err)
	default:
		return err
	}
}
