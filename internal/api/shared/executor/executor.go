package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/api/shared/dto"
	apierrors "github.com/feral-file/ff-state-reducer/internal/api/shared/errors"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/providers/temporal"
	"github.com/feral-file/ff-state-reducer/internal/updater"
	"github.com/feral-file/ff-state-reducer/internal/workflows"
)

// MaxBatchSize bounds the refs accepted by one batch request
const MaxBatchSize = 100

// SnapshotReader reads cached snapshots
type SnapshotReader interface {
	Get(ctx context.Context, ref domain.EntityRef) (updater.Snapshot, bool, error)
}

// Executor holds the logic behind the REST handlers
type Executor interface {
	// GetEntity returns the materialized entity, from the cache when possible
	GetEntity(ctx context.Context, ref domain.EntityRef) (*dto.EntityResponse, error)

	// RefreshEntity recomputes an entity from its event log and returns the result
	RefreshEntity(ctx context.Context, ref domain.EntityRef) (*dto.EntityResponse, error)

	// RefreshEntities recomputes a batch of entities independently
	RefreshEntities(ctx context.Context, refs []domain.EntityRef) (*dto.RefreshEntitiesResponse, error)

	// TriggerReduction starts a workflow that reduces a batch of entities in the background
	TriggerReduction(ctx context.Context, refs []domain.EntityRef) (*dto.TriggerReductionResponse, error)
}

type executor struct {
	service               *updater.Service
	cache                 SnapshotReader
	orchestrator          temporal.TemporalOrchestrator
	orchestratorTaskQueue string
}

// NewExecutor creates an executor. cache and orchestrator may be nil.
func NewExecutor(service *updater.Service, cache SnapshotReader, orchestrator temporal.TemporalOrchestrator, orchestratorTaskQueue string) Executor {
	return &executor{
		service:               service,
		cache:                 cache,
		orchestrator:          orchestrator,
		orchestratorTaskQueue: orchestratorTaskQueue,
	}
}

func (e *executor) GetEntity(ctx context.Context, ref domain.EntityRef) (*dto.EntityResponse, error) {
	if e.cache != nil {
		snapshot, ok, err := e.cache.Get(ctx, ref)
		switch {
		case err != nil:
			logger.WarnCtx(ctx, "Snapshot cache unavailable, reading repository", zap.String("ref", ref.String()), zap.Error(err))
		case ok:
			return dto.MapSnapshotToDTO(snapshot, dto.SourceCache), nil
		}
	}

	snapshot, err := e.service.Get(ctx, ref)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("Failed to get %s", ref))
	}
	return dto.MapSnapshotToDTO(snapshot, dto.SourceRepository), nil
}

func (e *executor) RefreshEntity(ctx context.Context, ref domain.EntityRef) (*dto.EntityResponse, error) {
	snapshot, err := e.service.Refresh(ctx, ref)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("Failed to refresh %s", ref))
	}
	return dto.MapSnapshotToDTO(snapshot, dto.SourceReduction), nil
}

func (e *executor) RefreshEntities(ctx context.Context, refs []domain.EntityRef) (*dto.RefreshEntitiesResponse, error) {
	if err := validateBatch(refs); err != nil {
		return nil, err
	}

	resp := &dto.RefreshEntitiesResponse{Results: make([]dto.RefreshEntityResult, 0, len(refs))}
	for _, r := range e.service.RefreshMany(ctx, refs) {
		result := dto.RefreshEntityResult{Kind: r.Ref.Kind, ID: r.Ref.ID}
		if r.Err != nil {
			result.Error = toAPIError(mapError(r.Err, fmt.Sprintf("Failed to refresh %s", r.Ref)))
			resp.Failed++
		} else {
			result.Entity = dto.MapSnapshotToDTO(r.Snapshot, dto.SourceReduction)
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

func (e *executor) TriggerReduction(ctx context.Context, refs []domain.EntityRef) (*dto.TriggerReductionResponse, error) {
	if e.orchestrator == nil {
		return nil, apierrors.NewServiceError("Background reduction is not configured")
	}
	if err := validateBatch(refs); err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if _, err := e.service.Runner(ref.Kind); err != nil {
			return nil, apierrors.NewBadRequestError(fmt.Sprintf("Unsupported entity kind: %s", ref.Kind))
		}
	}

	w := workflows.NewWorkerCore(nil, workflows.WorkerCoreConfig{})
	options := client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("reduce-batch-%s", uuid.NewString()),
		TaskQueue:                e.orchestratorTaskQueue,
		WorkflowExecutionTimeout: 30 * time.Minute,
	}
	wfRun, err := e.orchestrator.ExecuteWorkflow(ctx, options, w.ReduceEntities, refs)
	if err != nil {
		return nil, apierrors.NewServiceError(fmt.Sprintf("Failed to trigger reduction: %v", err))
	}

	return &dto.TriggerReductionResponse{
		WorkflowID: wfRun.GetID(),
		RunID:      wfRun.GetRunID(),
	}, nil
}

func validateBatch(refs []domain.EntityRef) error {
	if len(refs) == 0 {
		return apierrors.NewValidationError("refs must not be empty")
	}
	if len(refs) > MaxBatchSize {
		return apierrors.NewValidationError(fmt.Sprintf("at most %d refs per request", MaxBatchSize))
	}
	return nil
}

// toAPIError keeps API errors and hides the details of anything else
func toAPIError(err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	logger.Error(err)
	return apierrors.NewInternalError("Failed to refresh entity")
}

// mapError converts updater errors into API errors
func mapError(err error, message string) error {
	switch {
	case errors.Is(err, domain.ErrUnknownEntityKind):
		return apierrors.NewBadRequestError("Unsupported entity kind", err.Error())
	case errors.Is(err, domain.ErrInvalidEntityID):
		return apierrors.NewBadRequestError("Invalid entity id", err.Error())
	case errors.Is(err, domain.ErrEntityNotFound):
		return apierrors.NewNotFoundError("Entity not found")
	case errors.Is(err, domain.ErrRetryExhausted):
		return apierrors.NewRetryableError("Entity is being updated concurrently, retry later")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apierrors.NewServiceError(message, err.Error())
	default:
		return fmt.Errorf("%s: %w", message, err)
	}
}
