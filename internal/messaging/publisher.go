package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

// ChangeType is the kind of committed change
type ChangeType string

const (
	// ChangeTypeUpdated is published when an entity is created, changed or tombstoned
	ChangeTypeUpdated ChangeType = "updated"
	// ChangeTypeDeleted is published when an entity is removed from the store
	ChangeTypeDeleted ChangeType = "deleted"
)

// EntityChange is the notification published for a committed change
type EntityChange struct {
	ID         string            `json:"id"`
	Kind       domain.EntityKind `json:"kind"`
	EntityID   string            `json:"entity_id"`
	Change     ChangeType        `json:"change"`
	Version    int64             `json:"version,omitempty"`
	Deleted    bool              `json:"deleted,omitempty"`
	Data       json.RawMessage   `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Subject returns the subject the change is published to
func (c EntityChange) Subject() string {
	return fmt.Sprintf("entities.%s.%s", c.Kind, c.Change)
}

// Publisher publishes entity changes to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEntityChange publishes one change
	PublishEntityChange(ctx context.Context, change EntityChange) error
	// Close closes the connection
	Close()
}

// ChangeListener publishes every committed change it is notified of
type ChangeListener struct {
	publisher Publisher
	clock     adapter.Clock
}

// NewChangeListener creates a listener publishing through p
func NewChangeListener(p Publisher, clock adapter.Clock) *ChangeListener {
	return &ChangeListener{publisher: p, clock: clock}
}

func (l *ChangeListener) OnEntityUpdated(ctx context.Context, snapshot updater.Snapshot) error {
	return l.publisher.PublishEntityChange(ctx, EntityChange{
		ID:         l.newID(),
		Kind:       snapshot.Kind,
		EntityID:   snapshot.ID,
		Change:     ChangeTypeUpdated,
		Version:    snapshot.Version,
		Deleted:    snapshot.Deleted,
		Data:       snapshot.Data,
		OccurredAt: l.clock.Now(),
	})
}

func (l *ChangeListener) OnEntityDeleted(ctx context.Context, ref domain.EntityRef) error {
	return l.publisher.PublishEntityChange(ctx, EntityChange{
		ID:         l.newID(),
		Kind:       ref.Kind,
		EntityID:   ref.ID,
		Change:     ChangeTypeDeleted,
		OccurredAt: l.clock.Now(),
	})
}

func (l *ChangeListener) newID() string {
	return ulid.MustNewDefault(l.clock.Now()).String()
}
