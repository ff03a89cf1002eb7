package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/balance"
	"github.com/feral-file/ff-state-reducer/internal/bridge"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	mockspkg "github.com/feral-file/ff-state-reducer/internal/mocks"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testBridgeMocks contains all the mocks needed for testing the bridge
type testBridgeMocks struct {
	ctrl         *gomock.Controller
	natsJS       *mockspkg.MockNatsJetStream
	natsConn     *mockspkg.MockNatsConn
	jetStream    *mockspkg.MockJetStream
	store        *mockspkg.MockStore
	orchestrator *mockspkg.MockTemporalOrchestrator
	bridge       bridge.Bridge
}

func testConfig() bridge.Config {
	return bridge.Config{
		URL:                "nats://localhost:4222",
		StreamName:         "EVENTS",
		ConsumerName:       "event-bridge",
		MaxReconnects:      10,
		ReconnectWait:      time.Second,
		ConnectionName:     "event-bridge-test",
		AckWaitTimeout:     30 * time.Second,
		MaxDeliver:         5,
		TemporalTaskQueue:  "reducer",
		WorkflowRunTimeout: 10 * time.Minute,
		WorkerPoolSize:     2,
		WorkerQueueSize:    4,
	}
}

// setupTestBridge creates all the mocks and bridge for testing
func setupTestBridge(t *testing.T) *testBridgeMocks {
	ctrl := gomock.NewController(t)

	tm := &testBridgeMocks{
		ctrl:         ctrl,
		natsJS:       mockspkg.NewMockNatsJetStream(ctrl),
		natsConn:     mockspkg.NewMockNatsConn(ctrl),
		jetStream:    mockspkg.NewMockJetStream(ctrl),
		store:        mockspkg.NewMockStore(ctrl),
		orchestrator: mockspkg.NewMockTemporalOrchestrator(ctrl),
	}

	tm.natsJS.EXPECT().Connect("nats://localhost:4222", gomock.Any()).Return(tm.natsConn, tm.jetStream, nil)
	b, err := bridge.NewBridge(testConfig(), tm.natsJS, tm.store, tm.orchestrator)
	require.NoError(t, err)
	tm.bridge = b

	return tm
}

// tearDownTestBridge cleans up the test mocks
func tearDownTestBridge(mocks *testBridgeMocks) {
	mocks.ctrl.Finish()
}

var (
	token = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	owner = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	peer  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func transferRecord(t *testing.T, status domain.EventStatus, blk *uint64) domain.EventRecord {
	t.Helper()
	tx := "0x00000000000000000000000000000000000000000000000000000000000000f1"
	rec, err := balance.Encode(balance.IncomingTransfer{
		EventMeta: domain.EventMeta{
			ID:        domain.NewEventID(tx, 3, 0),
			EntityID:  balance.NewID(token, owner),
			TxHash:    tx,
			Status:    status,
			Key:       domain.OrderingKey{BlockNumber: blk, LogIndex: 3},
			Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		From:   peer,
		Amount: big.NewInt(5),
	})
	require.NoError(t, err)
	return rec
}

func confirmedRecord(t *testing.T) domain.EventRecord {
	blk := uint64(100)
	return transferRecord(t, domain.EventStatusConfirmed, &blk)
}

func newMessage(t *testing.T, ctrl *gomock.Controller, subject string, data []byte, delivered uint64) *mockspkg.MockJetStreamMessage {
	t.Helper()
	msg := mockspkg.NewMockJetStreamMessage(ctrl)
	msg.EXPECT().Data().Return(data).AnyTimes()
	msg.EXPECT().Subject().Return(subject).AnyTimes()
	msg.EXPECT().Metadata().Return(&jetstream.MsgMetadata{
		NumDelivered: delivered,
		Timestamp:    time.Date(2025, 3, 1, 0, 0, 5, 0, time.UTC),
	}, nil).AnyTimes()
	return msg
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestBridge_NewBridge_ConnectError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	natsJS := mockspkg.NewMockNatsJetStream(ctrl)
	natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil, nil, errors.New("connection refused"))

	b, err := bridge.NewBridge(testConfig(), natsJS, mockspkg.NewMockStore(ctrl), mockspkg.NewMockTemporalOrchestrator(ctrl))
	assert.Error(t, err)
	assert.Nil(t, b)
}

func TestBridge_Subjects(t *testing.T) {
	assert.Equal(t, []string{"events.balance.>", "events.item.>", "events.ownership.>", "events.order.>"}, bridge.Subjects())
}

func TestBridge_HandleMessage_AppendsAndSchedules(t *testing.T) {
	tm := setupTestBridge(t)
	defer tearDownTestBridge(tm)

	rec := confirmedRecord(t)
	msg := newMessage(t, tm.ctrl, "events.balance.incoming_transfer", mustJSON(t, rec), 1)

	tm.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(true, nil)
	tm.orchestrator.EXPECT().
		ExecuteWorkflow(gomock.Any(), gomock.Any(), gomock.Any(), rec.Ref()).
		DoAndReturn(func(_ context.Context, opts client.StartWorkflowOptions, _ interface{}, _ ...interface{}) (client.WorkflowRun, error) {
			assert.Equal(t, "reduce-balance-"+rec.Meta.EntityID+"-"+rec.Meta.ID+":confirmed", opts.ID)
			assert.Equal(t, "reducer", opts.TaskQueue)
			assert.Equal(t, enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE, opts.WorkflowIDReusePolicy)
			return nil, nil
		})
	msg.EXPECT().Ack().Return(nil)

	tm.bridge.HandleMessage(context.Background(), msg)
}

func TestBridge_HandleMessage_EachAppendStartsItsOwnRun(t *testing.T) {
	tm := setupTestBridge(t)
	defer tearDownTestBridge(tm)

	pending := transferRecord(t, domain.EventStatusPending, nil)
	confirmed := confirmedRecord(t)

	var ids []string
	tm.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)
	tm.orchestrator.EXPECT().
		ExecuteWorkflow(gomock.Any(), gomock.Any(), gomock.Any(), confirmed.Ref()).
		DoAndReturn(func(_ context.Context, opts client.StartWorkflowOptions, _ interface{}, _ ...interface{}) (client.WorkflowRun, error) {
			ids = append(ids, opts.ID)
			return nil, nil
		}).
		Times(2)

	for _, rec := range []domain.EventRecord{pending, confirmed} {
		msg := newMessage(t, tm.ctrl, "events.balance.incoming_transfer", mustJSON(t, rec), 1)
		msg.EXPECT().Ack().Return(nil)
		tm.bridge.HandleMessage(context.Background(), msg)
	}

	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, "reduce-balance-"+pending.Meta.EntityID+"-"+pending.Meta.ID+":pending", ids[0])
}

func TestBridge_HandleMessage_PendingGetsPublishTime(t *testing.T) {
	tm := setupTestBridge(t)
	defer tearDownTestBridge(tm)

	rec := transferRecord(t, domain.EventStatusPending, nil)
	msg := newMessage(t, tm.ctrl, "events.balance.incoming_transfer", mustJSON(t, rec), 1)

	tm.store.EXPECT().
		AppendEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got domain.EventRecord) (bool, error) {
			assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 5, 0, time.UTC), got.Meta.Key.ReceivedAt)
			return true, nil
		})
	tm.orchestrator.EXPECT().ExecuteWorkflow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	msg.EXPECT().Ack().Return(nil)

	tm.bridge.HandleMessage(context.Background(), msg)
}

func TestBridge_HandleMessage_TerminatesUnusableRecords(t *testing.T) {
	negative := confirmedRecord(t)
	negative.Payload = json.RawMessage(`{"from":"0x00000000000000000000000000000000000000c1","amount":-1}`)

	tests := []struct {
		name    string
		subject string
		data    func(t *testing.T) []byte
	}{
		{
			name:    "malformed json",
			subject: "events.balance.incoming_transfer",
			data:    func(*testing.T) []byte { return []byte(`{not json`) },
		},
		{
			name:    "kind does not match subject",
			subject: "events.item.incoming_transfer",
			data:    func(t *testing.T) []byte { return mustJSON(t, confirmedRecord(t)) },
		},
		{
			name:    "invalid payload",
			subject: "events.balance.incoming_transfer",
			data:    func(t *testing.T) []byte { return mustJSON(t, negative) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestBridge(t)
			defer tearDownTestBridge(tm)

			msg := newMessage(t, tm.ctrl, tt.subject, tt.data(t), 1)
			msg.EXPECT().Term().Return(nil)

			tm.bridge.HandleMessage(context.Background(), msg)
		})
	}
}

func TestBridge_HandleMessage_DuplicateDelivery(t *testing.T) {
	tests := []struct {
		name      string
		delivered uint64
		schedules bool
	}{
		{name: "first delivery of a known event", delivered: 1, schedules: false},
		{name: "redelivery after a failed start", delivered: 2, schedules: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestBridge(t)
			defer tearDownTestBridge(tm)

			rec := confirmedRecord(t)
			msg := newMessage(t, tm.ctrl, "events.balance.incoming_transfer", mustJSON(t, rec), tt.delivered)

			tm.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(false, nil)
			if tt.schedules {
				tm.orchestrator.EXPECT().ExecuteWorkflow(gomock.Any(), gomock.Any(), gomock.Any(), rec.Ref()).Return(nil, nil)
			}
			msg.EXPECT().Ack().Return(nil)

			tm.bridge.HandleMessage(context.Background(), msg)
		})
	}
}

func TestBridge_HandleMessage_StoreError(t *testing.T) {
	tm := setupTestBridge(t)
	defer tearDownTestBridge(tm)

	msg := newMessage(t, tm.ctrl, "events.balance.incoming_transfer", mustJSON(t, confirmedRecord(t)), 1)
	tm.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(false, errors.New("database is down"))
	msg.EXPECT().Nak().Return(nil)

	tm.bridge.HandleMessage(context.Background(), msg)
}

func TestBridge_HandleMessage_LeavingRevertedIsAcked(t *testing.T) {
	tm := setupTestBridge(t)
	defer tearDownTestBridge(tm)

	msg := newMessage(t, tm.ctrl, "events.balance.incoming_transfer", mustJSON(t, confirmedRecord(t)), 1)
	tm.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(false, domain.ErrInvalidStatusTransition)
	msg.EXPECT().Ack().Return(nil)

	tm.bridge.HandleMessage(context.Background(), msg)
}

func TestBridge_HandleMessage_WorkflowError(t *testing.T) {
	tm := setupTestBridge(t)
	defer tearDownTestBridge(tm)

	msg := newMessage(t, tm.ctrl, "events.balance.incoming_transfer", mustJSON(t, confirmedRecord(t)), 1)
	tm.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(true, nil)
	tm.orchestrator.EXPECT().ExecuteWorkflow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("temporal unavailable"))
	msg.EXPECT().Nak().Return(nil)

	tm.bridge.HandleMessage(context.Background(), msg)
}

func TestBridge_Run(t *testing.T) {
	tm := setupTestBridge(t)
	defer tearDownTestBridge(tm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := mockspkg.NewMockNatsConsumer(tm.ctrl)
	consumeCtx := mockspkg.NewMockConsumeContext(tm.ctrl)

	tm.jetStream.EXPECT().
		CreateOrUpdateConsumer(gomock.Any(), "EVENTS", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, cfg jetstream.ConsumerConfig) (adapter.Consumer, error) {
			assert.Equal(t, "event-bridge", cfg.Durable)
			assert.Equal(t, jetstream.AckExplicitPolicy, cfg.AckPolicy)
			assert.Equal(t, bridge.Subjects(), cfg.FilterSubjects)
			return consumer, nil
		})

	handlers := make(chan adapter.MessageHandler, 1)
	consumer.EXPECT().
		Consume(gomock.Any()).
		DoAndReturn(func(h adapter.MessageHandler, _ ...jetstream.PullConsumeOpt) (adapter.ConsumeContext, error) {
			handlers <- h
			return consumeCtx, nil
		})
	consumeCtx.EXPECT().Stop()

	rec := confirmedRecord(t)
	msg := newMessage(t, tm.ctrl, "events.balance.incoming_transfer", mustJSON(t, rec), 1)
	tm.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(true, nil)
	tm.orchestrator.EXPECT().ExecuteWorkflow(gomock.Any(), gomock.Any(), gomock.Any(), rec.Ref()).Return(nil, nil)

	acked := make(chan struct{})
	msg.EXPECT().Ack().DoAndReturn(func() error {
		close(acked)
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- tm.bridge.Run(ctx)
	}()

	select {
	case handler := <-handlers:
		handler(msg)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not start consuming")
	}

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not acked")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestBridge_Run_ConsumeCallbackReturnsAfterShutdown(t *testing.T) {
	tm := setupTestBridge(t)
	defer tearDownTestBridge(tm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := mockspkg.NewMockNatsConsumer(tm.ctrl)
	consumeCtx := mockspkg.NewMockConsumeContext(tm.ctrl)
	tm.jetStream.EXPECT().CreateOrUpdateConsumer(gomock.Any(), "EVENTS", gomock.Any()).Return(consumer, nil)

	handlers := make(chan adapter.MessageHandler, 1)
	consumer.EXPECT().
		Consume(gomock.Any()).
		DoAndReturn(func(h adapter.MessageHandler, _ ...jetstream.PullConsumeOpt) (adapter.ConsumeContext, error) {
			handlers <- h
			return consumeCtx, nil
		})
	consumeCtx.EXPECT().Stop()

	done := make(chan error, 1)
	go func() {
		done <- tm.bridge.Run(ctx)
	}()

	var handler adapter.MessageHandler
	select {
	case handler = <-handlers:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not start consuming")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}

	// more deliveries than the queue holds, with nothing left to drain it
	returned := make(chan struct{})
	go func() {
		for i := 0; i < testConfig().WorkerQueueSize+2; i++ {
			handler(mockspkg.NewMockJetStreamMessage(tm.ctrl))
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("consume callback blocked after shutdown")
	}
}
