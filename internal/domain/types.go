package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityKind represents the kind of materialized entity
type EntityKind string

const (
	EntityKindBalance   EntityKind = "balance"
	EntityKindItem      EntityKind = "item"
	EntityKindOwnership EntityKind = "ownership"
	EntityKindOrder     EntityKind = "order"
)

// EntityKinds lists every supported entity kind in a stable order
var EntityKinds = []EntityKind{
	EntityKindBalance,
	EntityKindItem,
	EntityKindOwnership,
	EntityKindOrder,
}

// Valid checks if the entity kind is supported
func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindBalance, EntityKindItem, EntityKindOwnership, EntityKindOrder:
		return true
	}
	return false
}

// ParseEntityKind parses an entity kind from its string form
func ParseEntityKind(s string) (EntityKind, error) {
	kind := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntityKind, s)
	}
	return kind, nil
}

// EntityRef identifies one entity of one kind
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// EventStatus represents the finality status of an event
type EventStatus string

const (
	EventStatusPending   EventStatus = "PENDING"
	EventStatusConfirmed EventStatus = "CONFIRMED"
	EventStatusReverted  EventStatus = "REVERTED"
)

// Valid checks if the status is one of the known statuses
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPending, EventStatusConfirmed, EventStatusReverted:
		return true
	}
	return false
}

// rank orders statuses that share an ordering key
func (s EventStatus) rank() int {
	switch s {
	case EventStatusPending:
		return 0
	case EventStatusConfirmed:
		return 1
	case EventStatusReverted:
		return 2
	}
	return 3
}

// CanTransitionTo reports whether an event may move from s to next.
// Re-recording the same status is allowed; nothing leaves REVERTED.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case EventStatusPending:
		return next == EventStatusConfirmed || next == EventStatusReverted
	case EventStatusConfirmed:
		return next == EventStatusReverted
	}
	return false
}

// OrderingKey is the fold position of an event within its entity's log.
// Events without a block number are pending and sort after every mined event.
type OrderingKey struct {
	BlockNumber   *uint64   `json:"block_number,omitempty"`
	LogIndex      uint32    `json:"log_index"`
	MinorLogIndex uint32    `json:"minor_log_index"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Mined reports whether the key carries a block number
func (k OrderingKey) Mined() bool {
	return k.BlockNumber != nil
}

// Compare returns -1, 0 or 1 depending on whether k sorts before, together with or after o
func (k OrderingKey) Compare(o OrderingKey) int {
	switch {
	case k.Mined() && !o.Mined():
		return -1
	case !k.Mined() && o.Mined():
		return 1
	case k.Mined() && o.Mined():
		if c := compareUint64(*k.BlockNumber, *o.BlockNumber); c != 0 {
			return c
		}
	default:
		if c := k.ReceivedAt.Compare(o.ReceivedAt); c != 0 {
			return c
		}
	}

	if c := compareUint64(uint64(k.LogIndex), uint64(o.LogIndex)); c != 0 {
		return c
	}
	return compareUint64(uint64(k.MinorLogIndex), uint64(o.MinorLogIndex))
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// EventMeta holds the metadata every reducible event carries
type EventMeta struct {
	ID        string      `json:"id"`
	EntityID  string      `json:"entity_id"`
	TxHash    string      `json:"tx_hash"`
	Status    EventStatus `json:"status"`
	Key       OrderingKey `json:"key"`
	Timestamp time.Time   `json:"timestamp"`
}

// Meta returns the event metadata
func (m EventMeta) Meta() EventMeta {
	return m
}

// Validate checks the metadata invariants
func (m EventMeta) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}
	if m.EntityID == "" {
		return fmt.Errorf("%w: missing entity id", ErrInvalidEvent)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, m.Status)
	}
	if m.Status != EventStatusPending && !m.Key.Mined() {
		return fmt.Errorf("%w: %s event without block number", ErrInvalidEvent, m.Status)
	}
	return nil
}

// LogRef identifies the transaction log an event was decoded from.
// A pending event and its mined counterpart share the same log ref.
func (m EventMeta) LogRef() string {
	return fmt.Sprintf("%s:%d:%d", strings.ToLower(m.TxHash), m.Key.LogIndex, m.Key.MinorLogIndex)
}

// Compare orders events by key, then by status, then by id, giving a total order
func (m EventMeta) Compare(o EventMeta) int {
	if c := m.Key.Compare(o.Key); c != 0 {
		return c
	}
	if c := m.Status.rank() - o.Status.rank(); c != 0 {
		if c < 0 {
			return -1
		}
		return 1
	}
	return strings.Compare(m.ID, o.ID)
}

// NewEventID builds the event id for a transaction log
func NewEventID(txHash string, logIndex uint32, minorLogIndex uint32) string {
	return strings.ToLower(txHash) + ":" + strconv.FormatUint(uint64(logIndex), 10) + ":" + strconv.FormatUint(uint64(minorLogIndex), 10)
}

// EventRecord is the storage and transport form of an event.
// Payload holds the kind specific fields encoded as JSON.
type EventRecord struct {
	Kind    EntityKind      `json:"kind"`
	Type    string          `json:"type"`
	Meta    EventMeta       `json:"meta"`
	Payload json.RawMessage `json:"payload"`
}

// Ref returns the entity the record belongs to
func (r EventRecord) Ref() EntityRef {
	return EntityRef{Kind: r.Kind, ID: r.Meta.EntityID}
}

// Validate checks that the record can be stored
func (r EventRecord) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownEntityKind, r.Kind)
	}
	if r.Type == "" {
		return fmt.Errorf("%w: missing event type", ErrInvalidEvent)
	}
	return r.Meta.Validate()
}

// DecodePayload unmarshals an event record payload into T
func DecodePayload[T any](rec EventRecord) (T, error) {
	var out T
	if len(rec.Payload) == 0 {
		return out, fmt.Errorf("%w: empty %s payload", ErrInvalidEvent, rec.Type)
	}
	if err := json.Unmarshal(rec.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: malformed %s payload: %v", ErrInvalidEvent, rec.Type, err)
	}
	return out, nil
}
