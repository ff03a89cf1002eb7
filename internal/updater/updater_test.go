package updater_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"sync"
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
	"github.com/feral-file/ff-state-reducer/internal/reducer"
	"github.com/feral-file/ff-state-reducer/internal/retry"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/store/memory"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

var (
	token    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	peer     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	baseTime = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	entityID = balance.NewID(token, owner)

	fastRetry = retry.Policy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
)

func meta(blk uint64) domain.EventMeta {
	tx := common.BigToHash(new(big.Int).SetUint64(blk)).Hex()
	return domain.EventMeta{
		ID:        domain.NewEventID(tx, 0, 0),
		EntityID:  entityID,
		TxHash:    tx,
		Status:    domain.EventStatusConfirmed,
		Key:       domain.OrderingKey{BlockNumber: &blk},
		Timestamp: baseTime.Add(time.Duration(blk) * time.Minute),
	}
}

func incoming(blk uint64, amount int64) balance.Event {
	return balance.IncomingTransfer{EventMeta: meta(blk), From: peer, Amount: big.NewInt(amount)}
}

func outgoing(blk uint64, amount int64) balance.Event {
	return balance.OutgoingTransfer{EventMeta: meta(blk), To: peer, Amount: big.NewInt(amount)}
}

// fakeSource serves a fixed event history
type fakeSource struct {
	mu     sync.Mutex
	events []balance.Event
}

func (s *fakeSource) ListEvents(_ context.Context, _ string) ([]balance.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]balance.Event(nil), s.events...), nil
}

func (s *fakeSource) add(events ...balance.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// fakeRepo is a versioned single-entity repository that can lose races on demand
type fakeRepo struct {
	mu        sync.Mutex
	stored    *balance.Balance
	conflicts int
	saves     int
	deletes   int
	// beforeDelete runs once, ahead of the next delete, to let another writer commit first
	beforeDelete func()
}

func (r *fakeRepo) Get(_ context.Context, _ string) (*balance.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stored == nil {
		return nil, nil
	}
	b := *r.stored
	return &b, nil
}

func (r *fakeRepo) Save(_ context.Context, b balance.Balance, expected int64) (balance.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		return b, domain.ErrConflict
	}
	current := int64(0)
	if r.stored != nil {
		current = r.stored.Version
	}
	if current != expected {
		return b, domain.ErrConflict
	}
	b = b.WithVersion(expected + 1)
	r.stored = &b
	return b, nil
}

func (r *fakeRepo) Delete(_ context.Context, _ string, expected int64) (int64, error) {
	r.mu.Lock()
	hook := r.beforeDelete
	r.beforeDelete = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	if r.stored == nil || r.stored.Version != expected {
		return 0, domain.ErrConflict
	}
	r.stored = nil
	return 1, nil
}

// testUpdaterMocks contains all the mocks needed for testing the updater
type testUpdaterMocks struct {
	ctrl     *gomock.Controller
	listener *mocks.MockSnapshotListener
	source   *fakeSource
	repo     *fakeRepo
}

func setupTestUpdater(t *testing.T) *testUpdaterMocks {
	ctrl := gomock.NewController(t)
	return &testUpdaterMocks{
		ctrl:     ctrl,
		listener: mocks.NewMockSnapshotListener(ctrl),
		source:   &fakeSource{},
		repo:     &fakeRepo{},
	}
}

func (tm *testUpdaterMocks) updater(cfg updater.Config) *updater.Updater[balance.Balance, balance.Event] {
	return updater.New[balance.Balance, balance.Event](
		balance.NewEngine(reducer.Config{}),
		tm.source,
		tm.repo,
		cfg,
		updater.Notify[balance.Balance](domain.EntityKindBalance, tm.listener),
	)
}

func TestUpdater_CreatesEntityAndNotifiesOnce(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	tm.source.add(incoming(1, 5), incoming(2, 3))
	tm.listener.EXPECT().
		OnEntityUpdated(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s updater.Snapshot) error {
			assert.Equal(t, domain.EntityKindBalance, s.Kind)
			assert.Equal(t, entityID, s.ID)
			assert.Equal(t, int64(1), s.Version)
			assert.False(t, s.Deleted)
			return nil
		}).
		Times(1)

	b, err := tm.updater(updater.Config{}).Update(context.Background(), entityID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), b.Value.Int64())
	assert.Equal(t, int64(1), b.Version)
}

func TestUpdater_UnchangedStateIsNotWritten(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	tm.source.add(incoming(1, 5))
	tm.listener.EXPECT().OnEntityUpdated(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	u := tm.updater(updater.Config{})
	_, err := u.Update(context.Background(), entityID)
	require.NoError(t, err)

	b, err := u.Update(context.Background(), entityID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Version)
	assert.Equal(t, 1, tm.repo.saves)
}

func TestUpdater_UnknownEntity(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	_, err := tm.updater(updater.Config{}).Update(context.Background(), entityID)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	assert.Equal(t, 0, tm.repo.saves)

	_, err = tm.updater(updater.Config{}).Update(context.Background(), "not-a-balance")
	assert.ErrorIs(t, err, domain.ErrInvalidEntityID)
}

func TestUpdater_RetriesConflicts(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	tm.source.add(incoming(1, 5))
	tm.repo.conflicts = 2
	tm.listener.EXPECT().OnEntityUpdated(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	b, err := tm.updater(updater.Config{Retry: fastRetry}).Update(context.Background(), entityID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Version)
	assert.Equal(t, 3, tm.repo.saves)
}

func TestUpdater_GivesUpAfterRepeatedConflicts(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	tm.source.add(incoming(1, 5))
	tm.repo.conflicts = 100

	_, err := tm.updater(updater.Config{Retry: fastRetry}).Update(context.Background(), entityID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetryExhausted)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, updater.IsRetryable(err))
	assert.Equal(t, fastRetry.MaxAttempts, tm.repo.saves)
}

func TestUpdater_TombstoneFlag(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	tm.source.add(incoming(1, 5))
	u := tm.updater(updater.Config{})

	gomock.InOrder(
		tm.listener.EXPECT().OnEntityUpdated(gomock.Any(), gomock.Any()).Return(nil),
		tm.listener.EXPECT().
			OnEntityDeleted(gomock.Any(), domain.EntityRef{Kind: domain.EntityKindBalance, ID: entityID}).
			Return(nil),
	)

	_, err := u.Update(context.Background(), entityID)
	require.NoError(t, err)

	tm.source.add(outgoing(2, 5))
	b, err := u.Update(context.Background(), entityID)
	require.NoError(t, err)
	assert.True(t, b.Deleted)
	assert.Equal(t, int64(2), b.Version)
	require.NotNil(t, tm.repo.stored)
	assert.True(t, tm.repo.stored.Deleted)
}

func TestUpdater_TombstoneRemove(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	tm.source.add(incoming(1, 5))
	u := tm.updater(updater.Config{Tombstone: updater.TombstoneRemove})

	gomock.InOrder(
		tm.listener.EXPECT().OnEntityUpdated(gomock.Any(), gomock.Any()).Return(nil),
		tm.listener.EXPECT().OnEntityDeleted(gomock.Any(), gomock.Any()).Return(nil),
	)

	_, err := u.Update(context.Background(), entityID)
	require.NoError(t, err)

	tm.source.add(outgoing(2, 5))
	_, err = u.Update(context.Background(), entityID)
	require.NoError(t, err)
	assert.Nil(t, tm.repo.stored)
	assert.Equal(t, 1, tm.repo.deletes)

	// Reducing to a tombstone again writes nothing and notifies nobody
	_, err = u.Update(context.Background(), entityID)
	require.NoError(t, err)
	assert.Equal(t, 1, tm.repo.deletes)
	assert.Equal(t, 1, tm.repo.saves)
}

func TestUpdater_ListenerErrorDoesNotFailUpdate(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	tm.source.add(incoming(1, 5))
	tm.listener.EXPECT().OnEntityUpdated(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	b, err := tm.updater(updater.Config{}).Update(context.Background(), entityID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.Value.Int64())
}

func TestUpdater_GetAndRefresh(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	u := tm.updater(updater.Config{})
	_, err := u.Get(context.Background(), entityID)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)

	tm.source.add(incoming(1, 5))
	tm.listener.EXPECT().OnEntityUpdated(gomock.Any(), gomock.Any()).Return(nil)

	refreshed, err := u.Refresh(context.Background(), entityID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refreshed.Version)

	got, err := u.Get(context.Background(), entityID)
	require.NoError(t, err)
	assert.Equal(t, refreshed.Ref(), got.Ref())
	assert.JSONEq(t, string(refreshed.Data), string(got.Data))
}

func TestUpdater_TombstoneRemoveLosesToNewerCommit(t *testing.T) {
	tm := setupTestUpdater(t)
	defer tm.ctrl.Finish()

	cfg := updater.Config{Tombstone: updater.TombstoneRemove, Retry: fastRetry}
	writerA := tm.updater(cfg)
	writerB := tm.updater(cfg)

	// Both commits are updates; the stale tombstone must never be announced
	tm.listener.EXPECT().OnEntityUpdated(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	tm.source.add(incoming(1, 5))
	_, err := writerA.Update(context.Background(), entityID)
	require.NoError(t, err)

	// Writer A folds a tombstone; before it deletes, a new incoming transfer lands and writer B commits it
	tm.source.add(outgoing(2, 5))
	tm.repo.beforeDelete = func() {
		tm.source.add(incoming(3, 3))
		b, err := writerB.Update(context.Background(), entityID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), b.Version)
	}

	b, err := writerA.Update(context.Background(), entityID)
	require.NoError(t, err)
	assert.False(t, b.Deleted)

	require.NotNil(t, tm.repo.stored)
	assert.Equal(t, int64(2), tm.repo.stored.Version)
	assert.Equal(t, 0, tm.repo.stored.Value.Cmp(big.NewInt(3)))
	assert.Equal(t, 1, tm.repo.deletes)
}

func TestUpdater_ConcurrentWritersCommitOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for _, ev := range []balance.Event{incoming(1, 5), incoming(2, 7)} {
		rec, err := balance.Encode(ev)
		require.NoError(t, err)
		_, err = s.AppendEvent(ctx, rec)
		require.NoError(t, err)
	}

	newUpdater := func() *updater.Updater[balance.Balance, balance.Event] {
		return updater.New(
			balance.NewEngine(reducer.Config{}),
			store.NewEventSource(s, domain.EntityKindBalance, balance.Decode),
			store.NewRepository[balance.Balance](s, domain.EntityKindBalance),
			updater.Config{Retry: fastRetry},
			updater.Notify[balance.Balance](domain.EntityKindBalance, store.NewJournalListener(s)),
		)
	}

	const writers = 4
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = newUpdater().Update(ctx, entityID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	row, err := s.GetEntity(ctx, domain.EntityKindBalance, entityID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(1), row.Version)
	assert.Len(t, s.Journal(), 1)
}

func TestParseTombstonePolicy(t *testing.T) {
	p, err := updater.ParseTombstonePolicy("")
	require.NoError(t, err)
	assert.Equal(t, updater.TombstoneFlag, p)

	p, err = updater.ParseTombstonePolicy(" Remove ")
	require.NoError(t, err)
	assert.Equal(t, updater.TombstoneRemove, p)

	_, err = updater.ParseTombstonePolicy("purge")
	assert.Error(t, err)
}
