package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Entity represents the entities table - one materialized record per entity
type Entity struct {
	// Kind is the entity kind (balance, item, ownership, order)
	Kind string `gorm:"column:kind;primaryKey;type:text"`
	// EntityID is the composite id of the entity
	EntityID string `gorm:"column:entity_id;primaryKey;type:text"`
	// Version is the optimistic concurrency token, incremented on every committed write
	Version int64 `gorm:"column:version;not null"`
	// Deleted marks a tombstoned entity
	Deleted bool `gorm:"column:deleted;not null;default:false"`
	// Data is the JSON encoded entity
	Data datatypes.JSON `gorm:"column:data;not null;type:jsonb"`
	// CreatedAt is the timestamp when the entity was first materialized
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last committed write
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Entity model
func (Entity) TableName() string {
	return "entities"
}
