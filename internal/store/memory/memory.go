// Package memory is an in-process implementation of store.Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/store/schema"
)

type eventKey struct {
	kind     domain.EntityKind
	entityID string
	id       string
}

type entityKey struct {
	kind     domain.EntityKind
	entityID string
}

// Store keeps events, entities, journal rows and cursors in maps guarded by one mutex
type Store struct {
	mu       sync.RWMutex
	events   map[eventKey]domain.EventRecord
	entities map[entityKey]schema.Entity
	journal  []schema.ChangesJournal
	kv       map[string]string
	now      func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		events:   make(map[eventKey]domain.EventRecord),
		entities: make(map[entityKey]schema.Entity),
		kv:       make(map[string]string),
		now:      time.Now,
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) AppendEvent(_ context.Context, rec domain.EventRecord) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	if rec.Meta.Key.ReceivedAt.IsZero() {
		rec.Meta.Key.ReceivedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey{kind: rec.Kind, entityID: rec.Meta.EntityID, id: rec.Meta.ID}
	existing, ok := s.events[key]
	if !ok {
		rec.Payload = slices.Clone(rec.Payload)
		s.events[key] = rec
		return true, nil
	}

	from := existing.Meta.Status
	if !from.CanTransitionTo(rec.Meta.Status) {
		return false, fmt.Errorf("%w: %s -> %s for %s", domain.ErrInvalidStatusTransition, from, rec.Meta.Status, rec.Meta.ID)
	}
	if from == rec.Meta.Status {
		return false, nil
	}

	existing.Meta.Status = rec.Meta.Status
	if rec.Meta.Key.Mined() {
		existing.Meta.Key.BlockNumber = rec.Meta.Key.BlockNumber
		existing.Meta.Key.LogIndex = rec.Meta.Key.LogIndex
		existing.Meta.Key.MinorLogIndex = rec.Meta.Key.MinorLogIndex
		existing.Meta.Timestamp = rec.Meta.Timestamp
	}
	s.events[key] = existing
	return true, nil
}

func (s *Store) ListEventRecords(_ context.Context, kind domain.EntityKind, entityID string) ([]domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.EventRecord
	for key, rec := range s.events {
		if key.kind == kind && key.entityID == entityID {
			rec.Payload = slices.Clone(rec.Payload)
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Meta.Compare(records[j].Meta) < 0
	})
	return records, nil
}

func (s *Store) ListEntityIDs(_ context.Context, kind domain.EntityKind, afterID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range s.events {
		if key.kind == kind && key.entityID > afterID {
			seen[key.entityID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, strings.Compare)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) GetEntity(_ context.Context, kind domain.EntityKind, entityID string) (*schema.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[entityKey{kind: kind, entityID: entityID}]
	if !ok {
		return nil, nil
	}
	entity.Data = slices.Clone(entity.Data)
	return &entity, nil
}

func (s *Store) SaveEntity(_ context.Context, input store.SaveEntityInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey{kind: input.Kind, entityID: input.EntityID}
	current, ok := s.entities[key]
	switch {
	case input.ExpectedVersion == 0 && ok:
		return 0, fmt.Errorf("%w: %s %s already exists", domain.ErrConflict, input.Kind, input.EntityID)
	case input.ExpectedVersion != 0 && (!ok || current.Version != input.ExpectedVersion):
		return 0, fmt.Errorf("%w: %s %s is no longer at version %d", domain.ErrConflict, input.Kind, input.EntityID, input.ExpectedVersion)
	}

	now := s.now()
	next := schema.Entity{
		Kind:      string(input.Kind),
		EntityID:  input.EntityID,
		Version:   input.ExpectedVersion + 1,
		Deleted:   input.Deleted,
		Data:      slices.Clone(input.Data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ok {
		next.CreatedAt = current.CreatedAt
	}
	s.entities[key] = next
	return next.Version, nil
}

func (s *Store) DeleteEntity(_ context.Context, kind domain.EntityKind, entityID string, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey{kind: kind, entityID: entityID}
	if current, ok := s.entities[key]; !ok || current.Version != expectedVersion {
		return 0, fmt.Errorf("%w: %s %s is no longer at version %d", domain.ErrConflict, kind, entityID, expectedVersion)
	}
	delete(s.entities, key)
	return 1, nil
}

func (s *Store) CreateChangeJournal(_ context.Context, entry *schema.ChangesJournal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Cursor = int64(len(s.journal)) + 1
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = s.now()
	}
	s.journal = append(s.journal, *entry)
	return nil
}

// Journal returns a copy of the journal rows in insertion order
func (s *Store) Journal() []schema.ChangesJournal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.journal)
}

func (s *Store) GetSweepCursor(_ context.Context, kind domain.EntityKind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kv[store.SweepCursorKey(kind)], nil
}

func (s *Store) SetSweepCursor(_ context.Context, kind domain.EntityKind, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[store.SweepCursorKey(kind)] = entityID
	return nil
}
