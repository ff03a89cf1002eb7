package ownership

import (
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
	token    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenID  = big.NewInt(7)
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	peer     = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	artist   = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	baseTime = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
)

func id() string {
	return NewID(token, tokenID, owner)
}

func meta(blk uint64, status domain.EventStatus) domain.EventMeta {
	tx := common.BigToHash(new(big.Int).SetUint64(blk)).Hex()
	return domain.EventMeta{
		ID:        domain.NewEventID(tx, 0, 0),
		EntityID:  id(),
		TxHash:    tx,
		Status:    status,
		Key:       domain.OrderingKey{BlockNumber: &blk},
		Timestamp: baseTime.Add(time.Duration(blk) * time.Minute),
	}
}

func mint(blk uint64, amount int64) Mint {
	return Mint{EventMeta: meta(blk, domain.EventStatusConfirmed), To: owner, Amount: big.NewInt(amount), Minter: artist}
}

func transfer(blk uint64, from, to common.Address, amount int64) Transfer {
	return Transfer{EventMeta: meta(blk, domain.EventStatusConfirmed), From: from, To: to, Amount: big.NewInt(amount)}
}

func reduce(t *testing.T, cfg reducer.Config, events ...Event) Ownership {
	t.Helper()
	o, err := NewEngine(cfg).Reduce(id(), events)
	require.NoError(t, err)
	return o
}

func TestOwnership_ParseID(t *testing.T) {
	gotToken, gotTokenID, gotOwner, err := ParseID(id())
	require.NoError(t, err)
	assert.Equal(t, token, gotToken)
	assert.Equal(t, tokenID.String(), gotTokenID.String())
	assert.Equal(t, owner, gotOwner)

	_, _, _, err = ParseID("0xaa:7")
	assert.ErrorIs(t, err, domain.ErrInvalidEntityID)
}

func TestOwnership_TransfersRelativeToOwner(t *testing.T) {
	o := reduce(t, reducer.Config{},
		mint(1, 5),
		transfer(2, owner, peer, 2),
		transfer(3, peer, owner, 4),
		transfer(4, peer, artist, 9),
	)

	assert.Equal(t, int64(7), o.Value.Int64())
	assert.False(t, o.Deleted)
	assert.Equal(t, []domain.Part{{Account: artist, Value: domain.FULL_SHARE}}, o.Creators)
}

func TestOwnership_SelfTransferIsNoop(t *testing.T) {
	o := reduce(t, reducer.Config{}, mint(1, 2), transfer(2, owner, owner, 2))
	assert.Equal(t, int64(2), o.Value.Int64())
}

func TestOwnership_FullTransferOutTombstones(t *testing.T) {
	out := transfer(2, owner, peer, 3)
	o := reduce(t, reducer.Config{}, mint(1, 3), out)
	assert.True(t, o.Deleted)
	assert.Equal(t, 0, o.Value.Sign())

	out.Status = domain.EventStatusReverted
	o = reduce(t, reducer.Config{}, mint(1, 3), transfer(2, owner, peer, 3), out)
	assert.False(t, o.Deleted)
	assert.Equal(t, int64(3), o.Value.Int64())
}

func TestOwnership_PendingOutgoingKeepsEntityAlive(t *testing.T) {
	pending := transfer(2, owner, peer, 3)
	pending.Status = domain.EventStatusPending
	pending.Key = domain.OrderingKey{ReceivedAt: baseTime.Add(time.Hour)}

	o := reduce(t, reducer.Config{}, mint(1, 3), pending)
	assert.Equal(t, 0, o.Value.Sign())
	assert.Equal(t, 1, o.PendingCount)
	assert.False(t, o.Deleted)
}

func TestOwnership_LazyMintThenMint(t *testing.T) {
	lazy := LazyMint{
		EventMeta: meta(1, domain.EventStatusConfirmed),
		To:        owner,
		Amount:    big.NewInt(5),
		Creators:  []domain.Part{{Account: artist, Value: domain.FULL_SHARE}},
	}

	o := reduce(t, reducer.Config{}, lazy, mint(2, 2))
	assert.Equal(t, int64(2), o.Value.Int64())
	assert.Equal(t, int64(3), o.LazyValue.Int64())
	assert.True(t, o.CreatorsFinal)

	o = reduce(t, reducer.Config{}, lazy, LazyBurn{EventMeta: meta(3, domain.EventStatusConfirmed), From: owner, Amount: big.NewInt(5)})
	assert.True(t, o.Deleted)
}

func TestOwnership_EventsForOtherHoldersAreIgnored(t *testing.T) {
	other := Mint{EventMeta: meta(1, domain.EventStatusConfirmed), To: peer, Amount: big.NewInt(5), Minter: artist}
	o := reduce(t, reducer.Config{}, other)

	assert.Equal(t, 0, o.Value.Sign())
	assert.True(t, o.Deleted)
}

func TestOwnership_CompactionEquivalent(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	compacting := reducer.Config{Compaction: reducer.CompactionConfig{Enabled: true, MinRun: 2, StableDepth: 3}}
	parties := []common.Address{owner, peer, artist}

	for round := 0; round < 100; round++ {
		var events []Event
		for n := uint64(1); n <= 30; n++ {
			var ev Event
			if rng.Intn(3) == 0 {
				ev = mint(n, rng.Int63n(4))
			} else {
				ev = transfer(n, parties[rng.Intn(3)], parties[rng.Intn(3)], rng.Int63n(4))
			}
			events = append(events, ev)
			if rng.Intn(6) == 0 {
				switch e := ev.(type) {
				case Mint:
					e.Status = domain.EventStatusReverted
					events = append(events, e)
				case Transfer:
					e.Status = domain.EventStatusReverted
					events = append(events, e)
				}
			}
		}

		want := reduce(t, reducer.Config{}, events...)
		got := reduce(t, compacting, events...)
		assert.True(t, want.SameState(got), "round %d", round)
		assert.GreaterOrEqual(t, want.Value.Sign(), 0)
	}
}
