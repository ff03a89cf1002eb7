package balance

import (
	"encoding/json"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

var (
	token   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	peer    = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	genesis = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func meta(blk uint64, status domain.EventStatus) domain.EventMeta {
	tx := common.BigToHash(new(big.Int).SetUint64(blk)).Hex()
	return domain.EventMeta{
		ID:        domain.NewEventID(tx, 0, 0),
		EntityID:  NewID(token, owner),
		TxHash:    tx,
		Status:    status,
		Key:       domain.OrderingKey{BlockNumber: &blk},
		Timestamp: genesis.Add(time.Duration(blk) * 12 * time.Second),
	}
}

func incoming(blk uint64, amount int64) IncomingTransfer {
	return IncomingTransfer{EventMeta: meta(blk, domain.EventStatusConfirmed), From: peer, Amount: big.NewInt(amount)}
}

func outgoing(blk uint64, amount int64) OutgoingTransfer {
	return OutgoingTransfer{EventMeta: meta(blk, domain.EventStatusConfirmed), To: peer, Amount: big.NewInt(amount)}
}

func reverted(e Event) Event {
	switch ev := e.(type) {
	case IncomingTransfer:
		ev.Status = domain.EventStatusReverted
		return ev
	case OutgoingTransfer:
		ev.Status = domain.EventStatusReverted
		return ev
	}
	return e
}

func engines() map[string]*reducer.Engine[Balance, Event] {
	return map[string]*reducer.Engine[Balance, Event]{
		"replay":  NewEngine(reducer.Config{}),
		"inverse": NewEngine(reducer.Config{InverseRevert: true}),
		"compact": NewEngine(reducer.Config{Compaction: reducer.CompactionConfig{Enabled: true, MinRun: 2}}),
	}
}

func TestBalance_TransfersScenario(t *testing.T) {
	last := outgoing(4, 5)
	events := []Event{incoming(1, 3), incoming(2, 7), outgoing(3, 4), last}

	for name, engine := range engines() {
		t.Run(name, func(t *testing.T) {
			b, err := engine.Reduce(NewID(token, owner), events)
			require.NoError(t, err)

			assert.Equal(t, int64(1), b.Value.Int64())
			require.NotNil(t, b.LastUpdatedAt)
			assert.True(t, last.Timestamp.Equal(*b.LastUpdatedAt))
			assert.False(t, b.Deleted)
		})
	}
}

func TestBalance_RevertLastOutgoing(t *testing.T) {
	last := outgoing(4, 5)
	events := []Event{incoming(1, 3), incoming(2, 7), outgoing(3, 4), last, reverted(last)}

	for name, engine := range engines() {
		t.Run(name, func(t *testing.T) {
			b, err := engine.Reduce(NewID(token, owner), events)
			require.NoError(t, err)

			assert.Equal(t, int64(6), b.Value.Int64())
			require.NotNil(t, b.LastUpdatedAt)
			assert.True(t, meta(3, domain.EventStatusConfirmed).Timestamp.Equal(*b.LastUpdatedAt))
		})
	}
}

func TestBalance_ClampedRevertMatchesReplay(t *testing.T) {
	over := outgoing(3, 50)
	events := []Event{incoming(1, 10), incoming(2, 5), over, reverted(over)}

	replay, err := NewEngine(reducer.Config{}).Reduce(NewID(token, owner), events)
	require.NoError(t, err)
	inverse, err := NewEngine(reducer.Config{InverseRevert: true}).Reduce(NewID(token, owner), events)
	require.NoError(t, err)

	assert.Equal(t, int64(15), replay.Value.Int64())
	assert.True(t, replay.SameState(inverse))
}

func TestBalance_ReincludedTransferSurvivesRevert(t *testing.T) {
	// The transfer is reorged out and mined again at the same position as a new event
	orphaned := incoming(5, 7)
	reincluded := incoming(5, 7)
	reincluded.ID = orphaned.ID + ":replacement"
	events := []Event{incoming(1, 2), reverted(orphaned), reincluded}

	for name, engine := range engines() {
		t.Run(name, func(t *testing.T) {
			b, err := engine.Reduce(NewID(token, owner), events)
			require.NoError(t, err)
			assert.Equal(t, int64(9), b.Value.Int64())
		})
	}

	// With the orphaned record still in the log only its own reversal removes it
	b, err := NewEngine(reducer.Config{}).Reduce(NewID(token, owner), []Event{incoming(1, 2), orphaned, reverted(orphaned), reincluded})
	require.NoError(t, err)
	assert.Equal(t, int64(9), b.Value.Int64())
}

func TestBalance_SelfTransferIsNoop(t *testing.T) {
	self := incoming(1, 9)
	self.From = owner
	selfOut := outgoing(2, 4)
	selfOut.To = owner

	b, err := NewEngine(reducer.Config{}).Reduce(NewID(token, owner), []Event{incoming(0, 2), self, selfOut})
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.Value.Int64())
}

func TestBalance_NeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	engine := NewEngine(reducer.Config{InverseRevert: true})

	for round := 0; round < 200; round++ {
		var events []Event
		for i := 0; i < 20; i++ {
			var ev Event = incoming(uint64(i+1), rng.Int63n(10))
			if rng.Intn(2) == 0 {
				ev = outgoing(uint64(i+1), rng.Int63n(15))
			}
			events = append(events, ev)
			if rng.Intn(5) == 0 {
				events = append(events, reverted(ev))
			}
		}

		b, err := engine.Reduce(NewID(token, owner), events)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, b.Value.Sign(), 0)
	}
}

func TestBalance_PendingAndTombstone(t *testing.T) {
	engine := NewEngine(reducer.Config{})
	id := NewID(token, owner)

	in := incoming(1, 5)
	out := outgoing(2, 5)
	pendingOut := out
	pendingOut.Status = domain.EventStatusPending
	pendingOut.Key = domain.OrderingKey{ReceivedAt: genesis}

	// a pending debit is visible optimistically and keeps the balance alive
	b, err := engine.Reduce(id, []Event{in, pendingOut})
	require.NoError(t, err)
	assert.Equal(t, 0, b.Value.Sign())
	assert.Equal(t, 1, b.PendingCount)
	assert.False(t, b.Deleted)
	assert.True(t, in.Timestamp.Equal(*b.LastUpdatedAt))

	// once mined, the pending record is superseded and the balance is a tombstone
	b, err = engine.Reduce(id, []Event{in, pendingOut, out})
	require.NoError(t, err)
	assert.Equal(t, 0, b.PendingCount)
	assert.True(t, b.Deleted)
}

func TestBalance_PendingOnlyUsesPendingTimestamp(t *testing.T) {
	p := incoming(1, 5)
	p.Status = domain.EventStatusPending
	p.Key = domain.OrderingKey{ReceivedAt: genesis}

	b, err := NewEngine(reducer.Config{}).Reduce(NewID(token, owner), []Event{p})
	require.NoError(t, err)
	require.NotNil(t, b.LastUpdatedAt)
	assert.True(t, p.Timestamp.Equal(*b.LastUpdatedAt))
}

func TestBalance_InvalidEventSkipped(t *testing.T) {
	bad := incoming(2, 0)
	bad.Amount = big.NewInt(-3)

	b, err := NewEngine(reducer.Config{}).Reduce(NewID(token, owner), []Event{incoming(1, 4), bad})
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.Value.Int64())
}

func TestDecode(t *testing.T) {
	rec, err := Encode(incoming(7, 42))
	require.NoError(t, err)
	assert.Equal(t, TypeIncomingTransfer, rec.Type)

	ev, err := Decode(rec)
	require.NoError(t, err)
	in, ok := ev.(IncomingTransfer)
	require.True(t, ok)
	assert.Equal(t, int64(42), in.Amount.Int64())
	assert.Equal(t, peer, in.From)
	assert.Equal(t, rec.Meta.ID, in.ID)

	unknown, err := Decode(domain.EventRecord{Kind: domain.EntityKindBalance, Type: "approval", Meta: rec.Meta, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.IsType(t, Unrecognized{}, unknown)

	_, err = Decode(domain.EventRecord{Kind: domain.EntityKindBalance, Type: TypeOutgoingTransfer, Meta: rec.Meta, Payload: json.RawMessage(`{"amount":`)})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestUnrecognizedEventIsNoop(t *testing.T) {
	unknown := Unrecognized{EventMeta: meta(2, domain.EventStatusConfirmed), Type: "approval"}

	b, err := NewEngine(reducer.Config{}).Reduce(NewID(token, owner), []Event{incoming(1, 4), unknown})
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.Value.Int64())
}

func TestUnrecognizedEventIsNoop_Pending(t *testing.T) {
	pending := meta(3, domain.EventStatusPending)
	pending.Key = domain.OrderingKey{ReceivedAt: genesis.Add(time.Hour)}
	unknown := Unrecognized{EventMeta: pending, Type: "approval"}

	known := []Event{incoming(1, 5), outgoing(2, 5)}
	for name, engine := range engines() {
		t.Run(name, func(t *testing.T) {
			want, err := engine.Reduce(NewID(token, owner), known)
			require.NoError(t, err)
			got, err := engine.Reduce(NewID(token, owner), append(append([]Event(nil), known...), unknown))
			require.NoError(t, err)

			assert.True(t, want.Deleted)
			assert.True(t, want.SameState(got))
			assert.False(t, got.Activity.HasPending())
		})
	}

	// Reverting the tail leaves an unknown event among the remaining ones
	tail := outgoing(4, 5)
	events := []Event{incoming(1, 5), unknown, tail, reverted(tail)}
	replay, err := NewEngine(reducer.Config{}).Reduce(NewID(token, owner), events)
	require.NoError(t, err)
	inverse, err := NewEngine(reducer.Config{InverseRevert: true}).Reduce(NewID(token, owner), events)
	require.NoError(t, err)
	assert.True(t, replay.SameState(inverse))
	assert.False(t, inverse.Activity.HasPending())
}

func TestParseID(t *testing.T) {
	tok, own, err := ParseID(NewID(token, owner))
	require.NoError(t, err)
	assert.Equal(t, token, tok)
	assert.Equal(t, owner, own)

	_, err = New("not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidEntityID)
}
