package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/store/schema"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

// JournalListener records every committed entity change in the changes journal
type JournalListener struct {
	store Store
	now   func() time.Time
}

// NewJournalListener creates a journal listener
func NewJournalListener(s Store) *JournalListener {
	return &JournalListener{store: s, now: time.Now}
}

func (l *JournalListener) OnEntityUpdated(ctx context.Context, snapshot updater.Snapshot) error {
	change := schema.ChangeTypeUpdated
	if snapshot.Deleted {
		change = schema.ChangeTypeDeleted
	}
	return l.record(ctx, &schema.ChangesJournal{
		SubjectKind: string(snapshot.Kind),
		SubjectID:   snapshot.ID,
		Change:      change,
		Version:     snapshot.Version,
		ChangedAt:   l.now(),
		Meta:        datatypes.JSON(snapshot.Data),
	})
}

func (l *JournalListener) OnEntityDeleted(ctx context.Context, ref domain.EntityRef) error {
	return l.record(ctx, &schema.ChangesJournal{
		SubjectKind: string(ref.Kind),
		SubjectID:   ref.ID,
		Change:      schema.ChangeTypeDeleted,
		ChangedAt:   l.now(),
	})
}

func (l *JournalListener) record(ctx context.Context, entry *schema.ChangesJournal) error {
	if err := l.store.CreateChangeJournal(ctx, entry); err != nil {
		return fmt.Errorf("failed to journal %s %s: %w", entry.SubjectKind, entry.SubjectID, err)
	}
	return nil
}
