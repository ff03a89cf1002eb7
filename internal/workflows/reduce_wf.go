package workflows

import (
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
)

// ReduceEntity recomputes one entity from its event log and commits the result
func (w *workerCore) ReduceEntity(ctx workflow.Context, ref domain.EntityRef) (*ReduceResult, error) {
	logger.InfoWf(ctx, "Reducing entity",
		zap.String("kind", string(ref.Kind)),
		zap.String("entityID", ref.ID),
	)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: w.config.ActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    w.config.InitialInterval,
			BackoffCoefficient: 2.0,
			MaximumInterval:    w.config.MaxInterval,
			MaximumAttempts:    w.config.MaxAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var result ReduceResult
	err := workflow.ExecuteActivity(ctx, w.executor.ReduceEntity, ref).Get(ctx, &result)
	if err != nil {
		logger.ErrorWf(ctx,
			fmt.Errorf("failed to reduce entity"),
			zap.Error(err),
			zap.String("kind", string(ref.Kind)),
			zap.String("entityID", ref.ID),
		)
		return nil, err
	}

	logger.InfoWf(ctx, "Entity reduced",
		zap.String("kind", string(ref.Kind)),
		zap.String("entityID", ref.ID),
		zap.Int64("version", result.Version),
		zap.Bool("changed", result.Changed),
	)

	return &result, nil
}

// ReduceEntities reduces several entities, one child workflow each.
// A failed child is logged and does not fail the batch.
func (w *workerCore) ReduceEntities(ctx workflow.Context, refs []domain.EntityRef) error {
	logger.InfoWf(ctx, "Starting batch entity reduction", zap.Int("count", len(refs)))

	childWorkflowOptions := workflow.ChildWorkflowOptions{
		WorkflowExecutionTimeout: 4 * w.config.ActivityTimeout,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		ParentClosePolicy:        enums.PARENT_CLOSE_POLICY_REQUEST_CANCEL,
	}

	// child ids are scoped to this batch so a concurrent batch never joins its runs
	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID
	futures := make([]workflow.ChildWorkflowFuture, 0, len(refs))
	for _, ref := range refs {
		childWorkflowOptions.WorkflowID = parentID + "/" + ReduceWorkflowID(ref)
		childCtx := workflow.WithChildOptions(ctx, childWorkflowOptions)
		futures = append(futures, workflow.ExecuteChildWorkflow(childCtx, w.ReduceEntity, ref))
	}

	failed := 0
	for i, f := range futures {
		if err := f.Get(ctx, nil); err != nil {
			failed++
			logger.WarnWf(ctx, "Child reduction failed",
				zap.String("kind", string(refs[i].Kind)),
				zap.String("entityID", refs[i].ID),
				zap.Error(err),
			)
		}
	}

	logger.InfoWf(ctx, "Batch entity reduction completed",
		zap.Int("count", len(refs)),
		zap.Int("failed", failed),
	)
	return nil
}
