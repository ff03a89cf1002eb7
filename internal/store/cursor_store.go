package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/store/schema"
)

// CursorStore defines the interface for storing and retrieving sweeper cursors
type CursorStore interface {
	// GetSweepCursor returns the last entity id swept for a kind, or "" when none
	GetSweepCursor(ctx context.Context, kind domain.EntityKind) (string, error)
	// SetSweepCursor stores the last entity id swept for a kind
	SetSweepCursor(ctx context.Context, kind domain.EntityKind, entityID string) error
}

// SweepCursorKey is the key_value_store key of the sweeper cursor of a kind
func SweepCursorKey(kind domain.EntityKind) string {
	return fmt.Sprintf("sweep_cursor:%s", kind)
}

type cursorStore struct {
	db *gorm.DB
}

// NewCursorStore creates a new cursor store
func NewCursorStore(db *gorm.DB) CursorStore {
	return &cursorStore{db: db}
}

// GetSweepCursor returns the last entity id swept for a kind
func (s *cursorStore) GetSweepCursor(ctx context.Context, kind domain.EntityKind) (string, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", SweepCursorKey(kind)).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get sweep cursor: %w", err)
	}

	return kv.Value, nil
}

// SetSweepCursor stores the last entity id swept for a kind
func (s *cursorStore) SetSweepCursor(ctx context.Context, kind domain.EntityKind, entityID string) error {
	kv := schema.KeyValueStore{
		Key:   SweepCursorKey(kind),
		Value: entityID,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set sweep cursor: %w", err)
	}

	return nil
}
