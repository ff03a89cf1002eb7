package sweeper_test

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-state-reducer/internal/balance"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/mocks"
	"github.com/feral-file/ff-state-reducer/internal/registry"
	"github.com/feral-file/ff-state-reducer/internal/store/memory"
	"github.com/feral-file/ff-state-reducer/internal/sweeper"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	os.Exit(m.Run())
}

var (
	token = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	peer  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

type testSweeperMocks struct {
	ctrl    *gomock.Controller
	clock   *mocks.MockClock
	store   *memory.Store
	sweeper *sweeper.ConsistencySweeper
}

func setupTestSweeper(t *testing.T, batchSize int) *testSweeperMocks {
	ctrl := gomock.NewController(t)
	tm := &testSweeperMocks{
		ctrl:  ctrl,
		clock: mocks.NewMockClock(ctrl),
		store: memory.New(),
	}
	tm.clock.EXPECT().Now().Return(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)).AnyTimes()

	service := registry.NewService(tm.store, registry.Config{})
	tm.sweeper = sweeper.NewConsistencySweeper(sweeper.ConsistencySweeperConfig{
		BatchSize:      batchSize,
		WorkerPoolSize: 2,
		PassInterval:   time.Minute,
		Kinds:          []domain.EntityKind{domain.EntityKindBalance},
	}, tm.store, service, tm.clock)
	return tm
}

func tearDownTestSweeper(tm *testSweeperMocks) {
	tm.ctrl.Finish()
}

// appendTransfer logs an incoming transfer for the owner and returns the balance id
func appendTransfer(t *testing.T, s *memory.Store, owner byte) string {
	t.Helper()
	blk := uint64(owner)
	tx := common.BigToHash(new(big.Int).SetUint64(blk)).Hex()
	id := balance.NewID(token, common.BytesToAddress([]byte{owner}))
	rec, err := balance.Encode(balance.IncomingTransfer{
		EventMeta: domain.EventMeta{
			ID:        domain.NewEventID(tx, 0, 0),
			EntityID:  id,
			TxHash:    tx,
			Status:    domain.EventStatusConfirmed,
			Key:       domain.OrderingKey{BlockNumber: &blk},
			Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		From:   peer,
		Amount: big.NewInt(1),
	})
	require.NoError(t, err)
	_, err = s.AppendEvent(context.Background(), rec)
	require.NoError(t, err)
	return id
}

func TestConsistencySweeper_PagesAndWrapsAround(t *testing.T) {
	tm := setupTestSweeper(t, 2)
	defer tearDownTestSweeper(tm)

	ctx := context.Background()
	for _, owner := range []byte{0x01, 0x02, 0x03} {
		appendTransfer(t, tm.store, owner)
	}
	ids, err := tm.store.ListEntityIDs(ctx, domain.EntityKindBalance, "", 0)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	stats, err := tm.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Refreshed)
	assert.False(t, stats.Completed)

	cursor, err := tm.store.GetSweepCursor(ctx, domain.EntityKindBalance)
	require.NoError(t, err)
	assert.Equal(t, ids[1], cursor)

	stats, err = tm.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Refreshed)
	assert.True(t, stats.Completed)

	cursor, err = tm.store.GetSweepCursor(ctx, domain.EntityKindBalance)
	require.NoError(t, err)
	assert.Empty(t, cursor)

	for _, id := range ids {
		e, err := tm.store.GetEntity(ctx, domain.EntityKindBalance, id)
		require.NoError(t, err)
		require.NotNil(t, e, id)
		assert.Equal(t, int64(1), e.Version)
	}

	// a second pass finds nothing to change
	stats, err = tm.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Refreshed)
	e, err := tm.store.GetEntity(ctx, domain.EntityKindBalance, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Version)
}

func TestConsistencySweeper_CountsFailures(t *testing.T) {
	tm := setupTestSweeper(t, 10)
	defer tearDownTestSweeper(tm)

	ctx := context.Background()
	appendTransfer(t, tm.store, 0x01)

	bogus := appendTransfer(t, tm.store, 0x02)
	records, err := tm.store.ListEventRecords(ctx, domain.EntityKindBalance, bogus)
	require.NoError(t, err)
	rec := records[0]
	rec.Meta.EntityID = "not-a-balance"
	_, err = tm.store.AppendEvent(ctx, rec)
	require.NoError(t, err)

	stats, err := tm.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Refreshed)
	assert.Equal(t, 1, stats.Failed)
	assert.True(t, stats.Completed)
}

func TestConsistencySweeper_StartStop(t *testing.T) {
	tm := setupTestSweeper(t, 10)
	defer tearDownTestSweeper(tm)

	never := make(chan time.Time)
	tm.clock.EXPECT().After(time.Minute).Return((<-chan time.Time)(never)).AnyTimes()

	id := appendTransfer(t, tm.store, 0x01)

	done := make(chan error, 1)
	go func() {
		done <- tm.sweeper.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		e, err := tm.store.GetEntity(context.Background(), domain.EntityKindBalance, id)
		return err == nil && e != nil
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tm.sweeper.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Equal(t, "consistency-sweeper", tm.sweeper.Name())
}
