package schema

import (
	"time"

	"gorm.io/datatypes"
)

// ChangeType represents what happened to an entity
type ChangeType string

const (
	// ChangeTypeUpdated indicates a committed material change
	ChangeTypeUpdated ChangeType = "updated"
	// ChangeTypeDeleted indicates a tombstone or a physical removal
	ChangeTypeDeleted ChangeType = "deleted"
)

// ChangesJournal represents the changes_journal table - audit log of every committed entity change
type ChangesJournal struct {
	// Cursor is an auto-incrementing sequence number for efficient pagination and ordering
	Cursor int64 `gorm:"column:\"cursor\";primaryKey;autoIncrement"`
	// SubjectKind is the entity kind that changed
	SubjectKind string `gorm:"column:subject_kind;not null;type:text;index:idx_changes_journal_subject,priority:1"`
	// SubjectID is the id of the changed entity
	SubjectID string `gorm:"column:subject_id;not null;type:text;index:idx_changes_journal_subject,priority:2"`
	// Change is updated or deleted
	Change ChangeType `gorm:"column:change;not null;type:text"`
	// Version is the entity version after the change; 0 for physical removals
	Version int64 `gorm:"column:version;not null;default:0"`
	// ChangedAt is the timestamp when the change was committed
	ChangedAt time.Time `gorm:"column:changed_at;not null;default:now();type:timestamptz"`
	// Meta contains the snapshot of the entity after the change
	Meta datatypes.JSON `gorm:"column:meta;type:jsonb"`
}

// TableName specifies the table name for the ChangesJournal model
func (ChangesJournal) TableName() string {
	return "changes_journal"
}
