package schema

import (
	"time"

	"gorm.io/datatypes"
)

// EntityEvent represents the entity_events table - the append-only event log of every entity.
// A record is identified by the entity it belongs to and the transaction log it was decoded from;
// later observations of the same log only move its status forward.
type EntityEvent struct {
	// Kind is the entity kind (balance, item, ownership, order)
	Kind string `gorm:"column:kind;primaryKey;type:text"`
	// EntityID is the composite id of the entity the event applies to
	EntityID string `gorm:"column:entity_id;primaryKey;type:text"`
	// ID is the event id in format txHash:logIndex:minorLogIndex
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Type is the kind specific event type (e.g. mint, incoming_transfer)
	Type string `gorm:"column:type;not null;type:text"`
	// Status is PENDING, CONFIRMED or REVERTED
	Status string `gorm:"column:status;not null;type:text"`
	// TxHash is the transaction hash the event was decoded from
	TxHash string `gorm:"column:tx_hash;not null;type:text"`
	// BlockNumber is nil while the transaction is pending
	BlockNumber *int64 `gorm:"column:block_number;type:bigint"`
	// LogIndex is the position of the log within its block
	LogIndex int64 `gorm:"column:log_index;not null;type:bigint"`
	// MinorLogIndex disambiguates several events decoded from one log (e.g. batch transfers)
	MinorLogIndex int64 `gorm:"column:minor_log_index;not null;type:bigint"`
	// ReceivedAt orders pending events among themselves
	ReceivedAt time.Time `gorm:"column:received_at;not null;type:timestamptz"`
	// Timestamp is the block time, or the receipt time for pending events
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	// Payload holds the kind specific event fields
	Payload datatypes.JSON `gorm:"column:payload;type:jsonb"`
	// CreatedAt is the timestamp when the event was first recorded
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last status transition
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the EntityEvent model
func (EntityEvent) TableName() string {
	return "entity_events"
}
