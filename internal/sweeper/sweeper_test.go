package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-state-reducer/internal/mocks"
	"github.com/feral-file/ff-state-reducer/internal/sweeper"
)

func TestRun_StopsAfterCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := mocks.NewMockSweeper(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	s.EXPECT().Name().Return("test-sweeper").AnyTimes()
	s.EXPECT().Start(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	s.EXPECT().Stop(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- sweeper.Run(ctx, s, time.Second)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestRun_StartFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := mocks.NewMockSweeper(ctrl)

	s.EXPECT().Name().Return("test-sweeper").AnyTimes()
	s.EXPECT().Start(gomock.Any()).Return(errors.New("sweeper already running"))
	s.EXPECT().Stop(gomock.Any()).Return(nil)

	err := sweeper.Run(context.Background(), s, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test-sweeper failed")
}

func TestRun_StopTimeoutIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := mocks.NewMockSweeper(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.EXPECT().Name().Return("test-sweeper").AnyTimes()
	s.EXPECT().Start(gomock.Any()).Return(nil).AnyTimes()
	s.EXPECT().Stop(gomock.Any()).Return(context.DeadlineExceeded)

	assert.NoError(t, sweeper.Run(ctx, s, time.Millisecond))
}
