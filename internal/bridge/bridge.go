package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/nats-io/nats.go/jetstream"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	natsprovider "github.com/feral-file/ff-state-reducer/internal/providers/jetstream"
	"github.com/feral-file/ff-state-reducer/internal/providers/temporal"
	"github.com/feral-file/ff-state-reducer/internal/registry"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/workflows"
)

const (
	defaultWorkerPoolSize  = 16
	defaultWorkerQueueSize = 256
)

// Config holds the configuration for the event bridge
type Config struct {
	URL                string
	StreamName         string
	ConsumerName       string
	MaxReconnects      int
	ReconnectWait      time.Duration
	ConnectionName     string
	AckWaitTimeout     time.Duration
	MaxDeliver         int
	TemporalTaskQueue  string
	WorkflowRunTimeout time.Duration
	WorkerPoolSize     int
	WorkerQueueSize    int
}

// Bridge moves event records from JetStream into the event log and schedules their reduction
type Bridge interface {
	// Run consumes until ctx is done
	Run(ctx context.Context) error
	// HandleMessage processes one delivered message and settles it
	HandleMessage(ctx context.Context, msg adapter.Message)
	// Close closes the bridge and cleans up resources
	Close()
}

type bridge struct {
	nc           adapter.NatsConn
	js           adapter.JetStream
	store        store.Store
	orchestrator temporal.TemporalOrchestrator
	config       Config
}

// NewBridge creates a new event bridge
func NewBridge(
	cfg Config,
	natsJS adapter.NatsJetStream,
	st store.Store,
	orchestrator temporal.TemporalOrchestrator,
) (Bridge, error) {
	nc, js, err := natsJS.Connect(cfg.URL, natsprovider.ConnectOptions(cfg.ConnectionName, cfg.MaxReconnects, cfg.ReconnectWait)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.WorkerQueueSize <= 0 {
		cfg.WorkerQueueSize = defaultWorkerQueueSize
	}

	return &bridge{
		nc:           nc,
		js:           js,
		store:        st,
		orchestrator: orchestrator,
		config:       cfg,
	}, nil
}

// Subjects returns the subjects the bridge consumes, one wildcard per entity kind
func Subjects() []string {
	subjects := make([]string, 0, len(domain.EntityKinds))
	for _, k := range domain.EntityKinds {
		subjects = append(subjects, "events."+string(k)+".>")
	}
	return subjects
}

// Run starts the event bridge
func (b *bridge) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting event bridge",
		zap.String("stream", b.config.StreamName),
		zap.String("consumer", b.config.ConsumerName))

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, jetstream.ConsumerConfig{
		Durable:        b.config.ConsumerName,
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        b.config.AckWaitTimeout,
		MaxDeliver:     b.config.MaxDeliver,
		FilterSubjects: Subjects(),
	})
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	pool := pond.NewPool(
		b.config.WorkerPoolSize,
		pond.WithQueueSize(b.config.WorkerQueueSize),
		pond.WithContext(ctx),
	)
	defer func() {
		pool.StopAndWait()
		logger.InfoCtx(ctx, "Event bridge worker pool stopped",
			zap.Uint64("submitted", pool.SubmittedTasks()),
			zap.Uint64("completed", pool.CompletedTasks()))
	}()

	msgChan := make(chan adapter.Message, b.config.WorkerQueueSize)
	// after shutdown an undelivered message is left unacked for redelivery
	sub, err := consumer.Consume(func(msg adapter.Message) {
		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.InfoCtx(ctx, "Started consuming messages", zap.Strings("subjects", Subjects()))

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Shutting down event bridge")
			return ctx.Err()
		case msg := <-msgChan:
			pool.Submit(func() {
				b.HandleMessage(ctx, msg)
			})
		}
	}
}

// HandleMessage appends the record to the event log and starts the reduction of its entity.
// Records that can never be applied are terminated; transient failures are redelivered.
func (b *bridge) HandleMessage(ctx context.Context, msg adapter.Message) {
	var numDelivered uint64
	var published time.Time
	if metadata, err := msg.Metadata(); err == nil && metadata != nil {
		numDelivered = metadata.NumDelivered
		published = metadata.Timestamp
	}

	rec, err := b.decode(msg, published)
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("subject", msg.Subject()))
		settle(ctx, msg.Term, "terminate")
		return
	}

	fields := []zap.Field{
		zap.String("kind", string(rec.Kind)),
		zap.String("entityID", rec.Meta.EntityID),
		zap.String("eventID", rec.Meta.ID),
		zap.String("status", string(rec.Meta.Status)),
		zap.Uint64("deliveryCount", numDelivered),
	}
	logger.InfoCtx(ctx, "Received event", fields...)

	changed, err := b.store.AppendEvent(ctx, rec)
	if errors.Is(err, domain.ErrInvalidStatusTransition) {
		// a reverted log stays reverted
		logger.WarnCtx(ctx, "Dropping event that would leave the reverted status", append(fields, zap.Error(err))...)
		settle(ctx, msg.Ack, "ack")
		return
	}
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to append event: %w", err), fields...)
		settle(ctx, msg.Nak, "nak")
		return
	}

	// a redelivery may follow a failed start, so it schedules even when nothing changed
	if changed || numDelivered > 1 {
		if err := b.scheduleReduction(ctx, rec); err != nil {
			logger.ErrorCtx(ctx, err, fields...)
			settle(ctx, msg.Nak, "nak")
			return
		}
	}

	settle(ctx, msg.Ack, "ack")
}

func (b *bridge) decode(msg adapter.Message, published time.Time) (domain.EventRecord, error) {
	var rec domain.EventRecord
	if err := json.Unmarshal(msg.Data(), &rec); err != nil {
		return rec, fmt.Errorf("%w: failed to unmarshal event record: %v", domain.ErrInvalidEvent, err)
	}

	if kind := subjectKind(msg.Subject()); kind != "" && kind != string(rec.Kind) {
		return rec, fmt.Errorf("%w: %s record on subject %s", domain.ErrInvalidEvent, rec.Kind, msg.Subject())
	}

	if rec.Meta.Key.ReceivedAt.IsZero() {
		rec.Meta.Key.ReceivedAt = published
	}

	if err := registry.Validate(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// subjectKind extracts the kind token of events.<kind>.<type>
func subjectKind(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) < 3 || parts[0] != "events" {
		return ""
	}
	return parts[1]
}

func (b *bridge) scheduleReduction(ctx context.Context, rec domain.EventRecord) error {
	w := workflows.NewWorkerCore(nil, workflows.WorkerCoreConfig{})
	opt := client.StartWorkflowOptions{
		ID:                    workflows.ReduceEventWorkflowID(rec),
		TaskQueue:             b.config.TemporalTaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowRunTimeout:    b.config.WorkflowRunTimeout,
	}
	if _, err := b.orchestrator.ExecuteWorkflow(ctx, opt, w.ReduceEntity, rec.Ref()); err != nil {
		return fmt.Errorf("failed to execute workflow: %w", err)
	}

	logger.InfoCtx(ctx, "Reduction scheduled", zap.String("workflowID", opt.ID))
	return nil
}

func settle(ctx context.Context, fn func() error, action string) {
	if err := fn(); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to %s message: %w", action, err))
	}
}

// Close closes the bridge and cleans up resources
func (b *bridge) Close() {
	if b.nc == nil {
		return
	}

	b.nc.Close()
}
