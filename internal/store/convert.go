package store

import (
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/store/schema"
)

func recordToRow(rec domain.EventRecord) (schema.EntityEvent, error) {
	row := schema.EntityEvent{
		Kind:          string(rec.Kind),
		EntityID:      rec.Meta.EntityID,
		ID:            rec.Meta.ID,
		Type:          rec.Type,
		Status:        string(rec.Meta.Status),
		TxHash:        rec.Meta.TxHash,
		LogIndex:      int64(rec.Meta.Key.LogIndex),
		MinorLogIndex: int64(rec.Meta.Key.MinorLogIndex),
		ReceivedAt:    rec.Meta.Key.ReceivedAt.UTC(),
		Timestamp:     rec.Meta.Timestamp.UTC(),
		Payload:       datatypes.JSON(rec.Payload),
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now().UTC()
	}
	if len(row.Payload) == 0 {
		row.Payload = datatypes.JSON("{}")
	}
	if rec.Meta.Key.BlockNumber != nil {
		if *rec.Meta.Key.BlockNumber > math.MaxInt64 {
			return row, fmt.Errorf("%w: block number %d out of range", domain.ErrInvalidEvent, *rec.Meta.Key.BlockNumber)
		}
		blk := int64(*rec.Meta.Key.BlockNumber) //nolint:gosec,G115
		row.BlockNumber = &blk
	}
	return row, nil
}

func rowToRecord(row schema.EntityEvent) domain.EventRecord {
	rec := domain.EventRecord{
		Kind: domain.EntityKind(row.Kind),
		Type: row.Type,
		Meta: domain.EventMeta{
			ID:       row.ID,
			EntityID: row.EntityID,
			TxHash:   row.TxHash,
			Status:   domain.EventStatus(row.Status),
			Key: domain.OrderingKey{
				LogIndex:      uint32(row.LogIndex),      //nolint:gosec,G115
				MinorLogIndex: uint32(row.MinorLogIndex), //nolint:gosec,G115
				ReceivedAt:    row.ReceivedAt.UTC(),
			},
			Timestamp: row.Timestamp.UTC(),
		},
		Payload: []byte(row.Payload),
	}
	if row.BlockNumber != nil {
		blk := uint64(*row.BlockNumber) //nolint:gosec,G115
		rec.Meta.Key.BlockNumber = &blk
	}
	return rec
}
