package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(n uint64) *uint64 {
	return &n
}

func TestOrderingKeyCompare(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a    OrderingKey
		b    OrderingKey
		want int
	}{
		{
			name: "lower block first",
			a:    OrderingKey{BlockNumber: block(10), LogIndex: 9},
			b:    OrderingKey{BlockNumber: block(11), LogIndex: 0},
			want: -1,
		},
		{
			name: "same block orders by log index",
			a:    OrderingKey{BlockNumber: block(10), LogIndex: 3},
			b:    OrderingKey{BlockNumber: block(10), LogIndex: 2},
			want: 1,
		},
		{
			name: "same log orders by minor log index",
			a:    OrderingKey{BlockNumber: block(10), LogIndex: 3, MinorLogIndex: 1},
			b:    OrderingKey{BlockNumber: block(10), LogIndex: 3, MinorLogIndex: 2},
			want: -1,
		},
		{
			name: "pending sorts after mined",
			a:    OrderingKey{ReceivedAt: now},
			b:    OrderingKey{BlockNumber: block(1_000_000), ReceivedAt: now.Add(time.Hour)},
			want: 1,
		},
		{
			name: "pending ordered by receipt time",
			a:    OrderingKey{ReceivedAt: now, LogIndex: 5},
			b:    OrderingKey{ReceivedAt: now.Add(time.Second)},
			want: -1,
		},
		{
			name: "identical keys",
			a:    OrderingKey{BlockNumber: block(7), LogIndex: 1},
			b:    OrderingKey{BlockNumber: block(7), LogIndex: 1},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestEventMetaCompare_StatusTieBreak(t *testing.T) {
	key := OrderingKey{BlockNumber: block(5), LogIndex: 1}
	confirmed := EventMeta{ID: "b", Status: EventStatusConfirmed, Key: key}
	reverted := EventMeta{ID: "a", Status: EventStatusReverted, Key: key}

	assert.Equal(t, -1, confirmed.Compare(reverted))
	assert.Equal(t, 1, reverted.Compare(confirmed))
}

func TestEventStatusCanTransitionTo(t *testing.T) {
	assert.True(t, EventStatusPending.CanTransitionTo(EventStatusConfirmed))
	assert.True(t, EventStatusPending.CanTransitionTo(EventStatusReverted))
	assert.True(t, EventStatusConfirmed.CanTransitionTo(EventStatusReverted))
	assert.True(t, EventStatusConfirmed.CanTransitionTo(EventStatusConfirmed))
	assert.False(t, EventStatusConfirmed.CanTransitionTo(EventStatusPending))
	assert.False(t, EventStatusReverted.CanTransitionTo(EventStatusConfirmed))
	assert.False(t, EventStatusReverted.CanTransitionTo(EventStatusPending))
}

func TestEventMetaValidate(t *testing.T) {
	valid := EventMeta{
		ID:       NewEventID("0xABC", 1, 0),
		EntityID: "entity",
		Status:   EventStatusConfirmed,
		Key:      OrderingKey{BlockNumber: block(1)},
	}
	require.NoError(t, valid.Validate())
	assert.Equal(t, "0xabc:1:0", valid.ID)

	noBlock := valid
	noBlock.Key.BlockNumber = nil
	assert.ErrorIs(t, noBlock.Validate(), ErrInvalidEvent)

	pending := noBlock
	pending.Status = EventStatusPending
	assert.NoError(t, pending.Validate())

	unknown := valid
	unknown.Status = "DROPPED"
	assert.ErrorIs(t, unknown.Validate(), ErrInvalidEvent)
}

func TestParseEntityKind(t *testing.T) {
	kind, err := ParseEntityKind(" Balance ")
	require.NoError(t, err)
	assert.Equal(t, EntityKindBalance, kind)

	_, err = ParseEntityKind("collection")
	assert.ErrorIs(t, err, ErrUnknownEntityKind)
}

func TestSubQuantity(t *testing.T) {
	out, clamped := SubQuantity(big.NewInt(3), big.NewInt(5))
	assert.True(t, clamped)
	assert.Equal(t, 0, out.Sign())

	out, clamped = SubQuantity(big.NewInt(7), big.NewInt(5))
	assert.False(t, clamped)
	assert.Equal(t, int64(2), out.Int64())
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr.Hex())

	_, err = ParseAddress("0x123")
	assert.ErrorIs(t, err, ErrInvalidEntityID)
}
