package jetstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	natsjs "github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/messaging"
	"github.com/feral-file/ff-state-reducer/internal/mocks"
	"github.com/feral-file/ff-state-reducer/internal/providers/jetstream"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	os.Exit(m.Run())
}

type testPublisherMocks struct {
	ctrl   *gomock.Controller
	natsJS *mocks.MockNatsJetStream
	conn   *mocks.MockNatsConn
	js     *mocks.MockJetStream
}

func setupTestPublisher(t *testing.T) *testPublisherMocks {
	ctrl := gomock.NewController(t)
	return &testPublisherMocks{
		ctrl:   ctrl,
		natsJS: mocks.NewMockNatsJetStream(ctrl),
		conn:   mocks.NewMockNatsConn(ctrl),
		js:     mocks.NewMockJetStream(ctrl),
	}
}

func tearDownTestPublisher(tm *testPublisherMocks) {
	tm.ctrl.Finish()
}

func testConfig() jetstream.Config {
	return jetstream.Config{URL: "nats://localhost:4222", StreamName: "ENTITIES", MaxReconnects: 3, ConnectionName: "test"}
}

func TestNewPublisher_EnsuresStream(t *testing.T) {
	tm := setupTestPublisher(t)
	defer tearDownTestPublisher(tm)

	tm.natsJS.EXPECT().Connect("nats://localhost:4222", gomock.Any()).Return(tm.conn, tm.js, nil)
	tm.js.EXPECT().
		CreateOrUpdateStream(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cfg natsjs.StreamConfig) error {
			assert.Equal(t, "ENTITIES", cfg.Name)
			assert.Equal(t, []string{"entities.>"}, cfg.Subjects)
			return nil
		})

	p, err := jetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS)
	require.NoError(t, err)

	tm.conn.EXPECT().Close()
	p.Close()
}

func TestNewPublisher_StreamFailureClosesConnection(t *testing.T) {
	tm := setupTestPublisher(t)
	defer tearDownTestPublisher(tm)

	tm.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(tm.conn, tm.js, nil)
	tm.js.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(errors.New("no responders"))
	tm.conn.EXPECT().Close()

	_, err := jetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS)
	assert.Error(t, err)
}

func TestPublisher_PublishEntityChange(t *testing.T) {
	tm := setupTestPublisher(t)
	defer tearDownTestPublisher(tm)

	cfg := testConfig()
	cfg.StreamName = ""
	tm.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(tm.conn, tm.js, nil)
	p, err := jetstream.NewPublisher(context.Background(), cfg, tm.natsJS)
	require.NoError(t, err)

	change := messaging.EntityChange{
		ID:       "01JN5C2Z0000000000000000AA",
		Kind:     domain.EntityKindOwnership,
		EntityID: "0xaa:1:0xb1",
		Change:   messaging.ChangeTypeUpdated,
		Version:  2,
		Data:     json.RawMessage(`{"quantity":"1"}`),
	}

	tm.js.EXPECT().
		Publish(gomock.Any(), "entities.ownership.updated", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, data []byte, _ ...natsjs.PublishOpt) (*natsjs.PubAck, error) {
			var got messaging.EntityChange
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, change.ID, got.ID)
			assert.Equal(t, change.EntityID, got.EntityID)
			assert.JSONEq(t, `{"quantity":"1"}`, string(got.Data))
			return &natsjs.PubAck{Stream: "ENTITIES", Sequence: 1}, nil
		})

	require.NoError(t, p.PublishEntityChange(context.Background(), change))
}

func TestPublisher_PublishError(t *testing.T) {
	tm := setupTestPublisher(t)
	defer tearDownTestPublisher(tm)

	cfg := testConfig()
	cfg.StreamName = ""
	tm.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(tm.conn, tm.js, nil)
	p, err := jetstream.NewPublisher(context.Background(), cfg, tm.natsJS)
	require.NoError(t, err)

	tm.js.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	err = p.PublishEntityChange(context.Background(), messaging.EntityChange{Kind: domain.EntityKindOrder, Change: messaging.ChangeTypeDeleted})
	assert.ErrorContains(t, err, "entities.order.deleted")
}
