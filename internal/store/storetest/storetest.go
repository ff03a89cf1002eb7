// Package storetest holds the behaviour every store.Store implementation must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/store/schema"
)

const (
	entityA = "0x00000000000000000000000000000000000000aa:0x00000000000000000000000000000000000000b1"
	entityB = "0x00000000000000000000000000000000000000aa:0x00000000000000000000000000000000000000b2"
	entityC = "0x00000000000000000000000000000000000000aa:0x00000000000000000000000000000000000000b3"
)

var baseTime = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// =============================================================================
// Test Data Builders
// =============================================================================

func buildRecord(entityID, tx string, blk *uint64, logIndex uint32, status domain.EventStatus) domain.EventRecord {
	return domain.EventRecord{
		Kind: domain.EntityKindBalance,
		Type: "incoming_transfer",
		Meta: domain.EventMeta{
			ID:        domain.NewEventID(tx, logIndex, 0),
			EntityID:  entityID,
			TxHash:    tx,
			Status:    status,
			Key:       domain.OrderingKey{BlockNumber: blk, LogIndex: logIndex, ReceivedAt: baseTime},
			Timestamp: baseTime,
		},
		Payload: []byte(`{"from":"0x00000000000000000000000000000000000000c1","value":"1"}`),
	}
}

func block(n uint64) *uint64 {
	return &n
}

func testAppendEvent(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("new record is stored", func(t *testing.T) {
		changed, err := s.AppendEvent(ctx, buildRecord(entityA, "0x01", block(10), 0, domain.EventStatusConfirmed))
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("same record twice is idempotent", func(t *testing.T) {
		changed, err := s.AppendEvent(ctx, buildRecord(entityA, "0x01", block(10), 0, domain.EventStatusConfirmed))
		require.NoError(t, err)
		assert.False(t, changed)

		records, err := s.ListEventRecords(ctx, domain.EntityKindBalance, entityA)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("invalid record is rejected", func(t *testing.T) {
		rec := buildRecord(entityA, "0x02", nil, 0, domain.EventStatusConfirmed)
		_, err := s.AppendEvent(ctx, rec)
		assert.ErrorIs(t, err, domain.ErrInvalidEvent)

		rec = buildRecord(entityA, "0x02", block(1), 0, domain.EventStatusConfirmed)
		rec.Kind = "collection"
		_, err = s.AppendEvent(ctx, rec)
		assert.ErrorIs(t, err, domain.ErrUnknownEntityKind)
	})
}

func testStatusTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()

	pending := buildRecord(entityA, "0xAB", nil, 3, domain.EventStatusPending)
	changed, err := s.AppendEvent(ctx, pending)
	require.NoError(t, err)
	assert.True(t, changed)

	confirmed := buildRecord(entityA, "0xab", block(20), 3, domain.EventStatusConfirmed)
	changed, err = s.AppendEvent(ctx, confirmed)
	require.NoError(t, err)
	assert.True(t, changed)

	records, err := s.ListEventRecords(ctx, domain.EntityKindBalance, entityA)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.EventStatusConfirmed, records[0].Meta.Status)
	require.NotNil(t, records[0].Meta.Key.BlockNumber)
	assert.Equal(t, uint64(20), *records[0].Meta.Key.BlockNumber)

	reverted := buildRecord(entityA, "0xab", block(20), 3, domain.EventStatusReverted)
	changed, err = s.AppendEvent(ctx, reverted)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = s.AppendEvent(ctx, confirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	records, err = s.ListEventRecords(ctx, domain.EntityKindBalance, entityA)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.EventStatusReverted, records[0].Meta.Status)
}

func testListEventRecordsOrder(t *testing.T, s store.Store) {
	ctx := context.Background()

	late := buildRecord(entityA, "0x03", nil, 0, domain.EventStatusPending)
	late.Meta.Key.ReceivedAt = baseTime.Add(time.Minute)
	for _, rec := range []domain.EventRecord{
		late,
		buildRecord(entityA, "0x02", block(7), 1, domain.EventStatusConfirmed),
		buildRecord(entityA, "0x01", block(7), 0, domain.EventStatusConfirmed),
		buildRecord(entityA, "0x00", block(5), 9, domain.EventStatusConfirmed),
		buildRecord(entityB, "0x09", block(1), 0, domain.EventStatusConfirmed),
	} {
		_, err := s.AppendEvent(ctx, rec)
		require.NoError(t, err)
	}

	records, err := s.ListEventRecords(ctx, domain.EntityKindBalance, entityA)
	require.NoError(t, err)
	require.Len(t, records, 4)

	var ids []string
	for _, rec := range records {
		ids = append(ids, rec.Meta.ID)
		assert.Equal(t, entityA, rec.Meta.EntityID)
		assert.JSONEq(t, `{"from":"0x00000000000000000000000000000000000000c1","value":"1"}`, string(rec.Payload))
	}
	assert.Equal(t, []string{"0x00:9:0", "0x01:0:0", "0x02:1:0", "0x03:0:0"}, ids)

	records, err = s.ListEventRecords(ctx, domain.EntityKindOrder, entityA)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func testListEntityIDs(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i, id := range []string{entityC, entityA, entityB, entityA} {
		_, err := s.AppendEvent(ctx, buildRecord(id, "0x0"+string(rune('1'+i)), block(uint64(i+1)), 0, domain.EventStatusConfirmed))
		require.NoError(t, err)
	}

	ids, err := s.ListEntityIDs(ctx, domain.EntityKindBalance, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{entityA, entityB}, ids)

	ids, err = s.ListEntityIDs(ctx, domain.EntityKindBalance, entityB, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{entityC}, ids)

	ids, err = s.ListEntityIDs(ctx, domain.EntityKindBalance, entityC, 2)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = s.ListEntityIDs(ctx, domain.EntityKindItem, "", 2)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testSaveEntity(t *testing.T, s store.Store) {
	ctx := context.Background()

	got, err := s.GetEntity(ctx, domain.EntityKindBalance, entityA)
	require.NoError(t, err)
	assert.Nil(t, got)

	version, err := s.SaveEntity(ctx, store.SaveEntityInput{
		Kind:     domain.EntityKindBalance,
		EntityID: entityA,
		Data:     []byte(`{"value":"1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	t.Run("second create conflicts", func(t *testing.T) {
		_, err := s.SaveEntity(ctx, store.SaveEntityInput{
			Kind:     domain.EntityKindBalance,
			EntityID: entityA,
			Data:     []byte(`{"value":"9"}`),
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("update at the stored version", func(t *testing.T) {
		version, err := s.SaveEntity(ctx, store.SaveEntityInput{
			Kind:            domain.EntityKindBalance,
			EntityID:        entityA,
			Data:            []byte(`{"value":"2"}`),
			Deleted:         true,
			ExpectedVersion: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), version)

		got, err := s.GetEntity(ctx, domain.EntityKindBalance, entityA)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(2), got.Version)
		assert.True(t, got.Deleted)
		assert.JSONEq(t, `{"value":"2"}`, string(got.Data))
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		_, err := s.SaveEntity(ctx, store.SaveEntityInput{
			Kind:            domain.EntityKindBalance,
			EntityID:        entityA,
			Data:            []byte(`{"value":"3"}`),
			ExpectedVersion: 1,
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("update of a missing entity conflicts", func(t *testing.T) {
		_, err := s.SaveEntity(ctx, store.SaveEntityInput{
			Kind:            domain.EntityKindBalance,
			EntityID:        entityB,
			Data:            []byte(`{}`),
			ExpectedVersion: 4,
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("kinds do not share ids", func(t *testing.T) {
		got, err := s.GetEntity(ctx, domain.EntityKindItem, entityA)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func testDeleteEntity(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.DeleteEntity(ctx, domain.EntityKindBalance, entityA, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.SaveEntity(ctx, store.SaveEntityInput{Kind: domain.EntityKindBalance, EntityID: entityA, Data: []byte(`{}`)})
	require.NoError(t, err)
	_, err = s.SaveEntity(ctx, store.SaveEntityInput{Kind: domain.EntityKindBalance, EntityID: entityA, ExpectedVersion: 1, Data: []byte(`{}`)})
	require.NoError(t, err)

	// A delete based on a stale read loses to the newer commit
	_, err = s.DeleteEntity(ctx, domain.EntityKindBalance, entityA, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)
	got, err := s.GetEntity(ctx, domain.EntityKindBalance, entityA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Version)

	removed, err := s.DeleteEntity(ctx, domain.EntityKindBalance, entityA, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err = s.GetEntity(ctx, domain.EntityKindBalance, entityA)
	require.NoError(t, err)
	assert.Nil(t, got)

	// A removed entity is created again from version 0
	version, err := s.SaveEntity(ctx, store.SaveEntityInput{Kind: domain.EntityKindBalance, EntityID: entityA, Data: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func testChangeJournal(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := &schema.ChangesJournal{
		SubjectKind: string(domain.EntityKindBalance),
		SubjectID:   entityA,
		Change:      schema.ChangeTypeUpdated,
		Version:     1,
		ChangedAt:   baseTime,
	}
	require.NoError(t, s.CreateChangeJournal(ctx, first))
	assert.Positive(t, first.Cursor)

	second := &schema.ChangesJournal{
		SubjectKind: string(domain.EntityKindBalance),
		SubjectID:   entityA,
		Change:      schema.ChangeTypeDeleted,
		ChangedAt:   baseTime.Add(time.Second),
	}
	require.NoError(t, s.CreateChangeJournal(ctx, second))
	assert.Greater(t, second.Cursor, first.Cursor)
}

func testSweepCursor(t *testing.T, s store.Store) {
	ctx := context.Background()

	cursor, err := s.GetSweepCursor(ctx, domain.EntityKindItem)
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, s.SetSweepCursor(ctx, domain.EntityKindItem, entityA))
	require.NoError(t, s.SetSweepCursor(ctx, domain.EntityKindItem, entityB))

	cursor, err = s.GetSweepCursor(ctx, domain.EntityKindItem)
	require.NoError(t, err)
	assert.Equal(t, entityB, cursor)

	cursor, err = s.GetSweepCursor(ctx, domain.EntityKindOrder)
	require.NoError(t, err)
	assert.Empty(t, cursor)
}

// RunStoreTests runs every store test against a fresh store from initDB
func RunStoreTests(t *testing.T, initDB func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"AppendEvent", testAppendEvent},
		{"StatusTransitions", testStatusTransitions},
		{"ListEventRecordsOrder", testListEventRecordsOrder},
		{"ListEntityIDs", testListEntityIDs},
		{"SaveEntity", testSaveEntity},
		{"DeleteEntity", testDeleteEntity},
		{"ChangeJournal", testChangeJournal},
		{"SweepCursor", testSweepCursor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, initDB(t))
		})
	}
}
