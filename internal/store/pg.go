package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/store/schema"
)

type pgStore struct {
	CursorStore
	db *gorm.DB
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{CursorStore: NewCursorStore(db), db: db}
}

// Open connects to the primary database. When readDSN is set, reads are routed to that
// replica through dbresolver and writes stay on the primary.
func Open(dsn, readDSN string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if readDSN == "" {
		return db, nil
	}

	err = db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: []gorm.Dialector{postgres.Open(readDSN)},
		Policy:   dbresolver.RandomPolicy{},
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to register read replica: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table of the service
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(schema.Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	// Set defaults if not provided
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// primary routes a query to the primary database when read replicas are configured.
// Reads that feed a version-conditioned write must not observe replica lag.
func (s *pgStore) primary(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if hasDBResolver(s.db) {
		db = db.Clauses(dbresolver.Write)
	}
	return db
}

// AppendEvent records an event or transitions the status of the stored record of the same log
func (s *pgStore) AppendEvent(ctx context.Context, rec domain.EventRecord) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	row, err := recordToRow(rec)
	if err != nil {
		return false, err
	}

	changed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Insert unless the log was already recorded for this entity
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "entity_id"}, {Name: "id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("failed to create entity event: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			changed = true
			return nil
		}

		// 2. Lock the existing record and move its status forward
		var existing schema.EntityEvent
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("kind = ? AND entity_id = ? AND id = ?", row.Kind, row.EntityID, row.ID).
			First(&existing).Error; err != nil {
			return fmt.Errorf("failed to get entity event: %w", err)
		}

		from := domain.EventStatus(existing.Status)
		if !from.CanTransitionTo(rec.Meta.Status) {
			return fmt.Errorf("%w: %s -> %s for %s", domain.ErrInvalidStatusTransition, from, rec.Meta.Status, row.ID)
		}
		if from == rec.Meta.Status {
			return nil
		}

		updates := map[string]any{
			"status":     row.Status,
			"updated_at": time.Now(),
		}
		if row.BlockNumber != nil {
			updates["block_number"] = row.BlockNumber
			updates["log_index"] = row.LogIndex
			updates["minor_log_index"] = row.MinorLogIndex
			updates["timestamp"] = row.Timestamp
		}
		if err := tx.Model(&schema.EntityEvent{}).
			Where("kind = ? AND entity_id = ? AND id = ?", row.Kind, row.EntityID, row.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update entity event status: %w", err)
		}

		changed = true
		logger.DebugCtx(ctx, "Entity event status moved",
			zap.String("kind", row.Kind),
			zap.String("entityID", row.EntityID),
			zap.String("eventID", row.ID),
			zap.String("from", string(from)),
			zap.String("to", row.Status))
		return nil
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

// ListEventRecords returns every event record of an entity in fold order.
// Mined events sort by block and log position, pending ones by arrival.
func (s *pgStore) ListEventRecords(ctx context.Context, kind domain.EntityKind, entityID string) ([]domain.EventRecord, error) {
	var rows []schema.EntityEvent
	err := s.primary(ctx).
		Where("kind = ? AND entity_id = ?", string(kind), entityID).
		Order("block_number ASC NULLS LAST").
		Order("CASE WHEN block_number IS NULL THEN received_at END ASC").
		Order("log_index ASC").
		Order("minor_log_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entity events: %w", err)
	}

	records := make([]domain.EventRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRecord(row))
	}
	return records, nil
}

// ListEntityIDs returns a page of entity ids that have at least one event
func (s *pgStore) ListEntityIDs(ctx context.Context, kind domain.EntityKind, afterID string, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&schema.EntityEvent{}).
		Distinct("entity_id").
		Where("kind = ? AND entity_id > ?", string(kind), afterID).
		Order("entity_id ASC").
		Limit(limit).
		Pluck("entity_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entity ids: %w", err)
	}
	return ids, nil
}

// GetEntity returns the stored entity or nil
func (s *pgStore) GetEntity(ctx context.Context, kind domain.EntityKind, entityID string) (*schema.Entity, error) {
	var entity schema.Entity
	err := s.primary(ctx).
		Where("kind = ? AND entity_id = ?", string(kind), entityID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}

// SaveEntity performs a version-conditioned write
func (s *pgStore) SaveEntity(ctx context.Context, input SaveEntityInput) (int64, error) {
	next := input.ExpectedVersion + 1

	if input.ExpectedVersion == 0 {
		entity := schema.Entity{
			Kind:     string(input.Kind),
			EntityID: input.EntityID,
			Version:  next,
			Deleted:  input.Deleted,
			Data:     datatypes.JSON(input.Data),
		}
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "entity_id"}},
			DoNothing: true,
		}).Create(&entity)
		if res.Error != nil {
			return 0, fmt.Errorf("failed to create entity: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return 0, fmt.Errorf("%w: %s %s already exists", domain.ErrConflict, input.Kind, input.EntityID)
		}
		return next, nil
	}

	res := s.db.WithContext(ctx).
		Model(&schema.Entity{}).
		Where("kind = ? AND entity_id = ? AND version = ?", string(input.Kind), input.EntityID, input.ExpectedVersion).
		Updates(map[string]any{
			"version":    next,
			"deleted":    input.Deleted,
			"data":       datatypes.JSON(input.Data),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update entity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: %s %s is no longer at version %d", domain.ErrConflict, input.Kind, input.EntityID, input.ExpectedVersion)
	}
	return next, nil
}

// DeleteEntity performs a version-conditioned delete
func (s *pgStore) DeleteEntity(ctx context.Context, kind domain.EntityKind, entityID string, expectedVersion int64) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("kind = ? AND entity_id = ? AND version = ?", string(kind), entityID, expectedVersion).
		Delete(&schema.Entity{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete entity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: %s %s is no longer at version %d", domain.ErrConflict, kind, entityID, expectedVersion)
	}
	return res.RowsAffected, nil
}

// CreateChangeJournal appends a row to the changes journal
func (s *pgStore) CreateChangeJournal(ctx context.Context, entry *schema.ChangesJournal) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create change journal: %w", err)
	}
	return nil
}
