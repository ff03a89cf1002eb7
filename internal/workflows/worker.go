package workflows

import (
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/feral-file/ff-state-reducer/internal/domain"
)

// WorkerCore defines the workflows run by the core worker
type WorkerCore interface {
	// ReduceEntity recomputes one entity from its event log and commits the result
	ReduceEntity(ctx workflow.Context, ref domain.EntityRef) (*ReduceResult, error)

	// ReduceEntities reduces several entities, one child workflow each
	ReduceEntities(ctx workflow.Context, refs []domain.EntityRef) error
}

// WorkerCoreConfig holds the activity options of the core workflows
type WorkerCoreConfig struct {
	// ActivityTimeout bounds one ReduceEntity activity
	ActivityTimeout time.Duration
	// MaxAttempts bounds the activity retries; 0 means unlimited
	MaxAttempts int32
	// InitialInterval is the first backoff between activity retries
	InitialInterval time.Duration
	// MaxInterval caps the backoff between activity retries
	MaxInterval time.Duration
}

// DefaultWorkerCoreConfig returns the defaults used when nothing is configured
func DefaultWorkerCoreConfig() WorkerCoreConfig {
	return WorkerCoreConfig{
		ActivityTimeout: 2 * time.Minute,
		MaxAttempts:     10,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
	}
}

type workerCore struct {
	config   WorkerCoreConfig
	executor Executor
}

// NewWorkerCore creates a new worker core instance
func NewWorkerCore(executor Executor, config WorkerCoreConfig) WorkerCore {
	return &workerCore{
		executor: executor,
		config:   config,
	}
}

// ReduceWorkflowID returns the id of the workflow reducing an entity
func ReduceWorkflowID(ref domain.EntityRef) string {
	return "reduce-" + string(ref.Kind) + "-" + ref.ID
}

// ReduceEventWorkflowID returns the id of the workflow reducing an entity after
// one event status was appended. Each appended status starts its own run, so a
// run already past ListEvents never swallows a later event; redeliveries of the
// same record map to the same id.
func ReduceEventWorkflowID(rec domain.EventRecord) string {
	return ReduceWorkflowID(rec.Ref()) + "-" + rec.Meta.ID + ":" + strings.ToLower(string(rec.Meta.Status))
}
