package workflows_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/mocks"
	"github.com/feral-file/ff-state-reducer/internal/updater"
	"github.com/feral-file/ff-state-reducer/internal/workflows"
)

// testExecutorMocks contains all the mocks needed for testing the executor
type testExecutorMocks struct {
	ctrl             *gomock.Controller
	runner           *mocks.MockRunner
	temporalActivity *mocks.MockActivity
	executor         workflows.Executor
}

// setupTestExecutor creates all the mocks and executor for testing
func setupTestExecutor(t *testing.T) *testExecutorMocks {
	err := logger.Initialize(logger.Config{
		Debug: true,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	ctrl := gomock.NewController(t)
	tm := &testExecutorMocks{
		ctrl:             ctrl,
		runner:           mocks.NewMockRunner(ctrl),
		temporalActivity: mocks.NewMockActivity(ctrl),
	}
	tm.runner.EXPECT().Kind().Return(domain.EntityKindBalance).AnyTimes()
	tm.temporalActivity.EXPECT().GetInfo(gomock.Any()).Return(activity.Info{Attempt: 1}).AnyTimes()

	tm.executor = workflows.NewExecutor(updater.NewService(1, tm.runner), tm.temporalActivity)
	return tm
}

// tearDownTestExecutor cleans up the test mocks
func tearDownTestExecutor(tm *testExecutorMocks) {
	tm.ctrl.Finish()
}

func snapshot(version int64) updater.Snapshot {
	return updater.Snapshot{Kind: balanceRef.Kind, ID: balanceRef.ID, Version: version, Data: []byte(`{}`)}
}

func TestExecutor_ReduceEntity_Changed(t *testing.T) {
	tm := setupTestExecutor(t)
	defer tearDownTestExecutor(tm)

	tm.runner.EXPECT().Get(gomock.Any(), balanceRef.ID).Return(snapshot(1), nil)
	tm.runner.EXPECT().Refresh(gomock.Any(), balanceRef.ID).Return(snapshot(2), nil)

	result, err := tm.executor.ReduceEntity(context.Background(), balanceRef)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Version)
	assert.True(t, result.Changed)
}

func TestExecutor_ReduceEntity_FirstMaterialization(t *testing.T) {
	tm := setupTestExecutor(t)
	defer tearDownTestExecutor(tm)

	tm.runner.EXPECT().Get(gomock.Any(), balanceRef.ID).Return(updater.Snapshot{}, fmt.Errorf("%w: balance", domain.ErrEntityNotFound))
	tm.runner.EXPECT().Refresh(gomock.Any(), balanceRef.ID).Return(snapshot(1), nil)

	result, err := tm.executor.ReduceEntity(context.Background(), balanceRef)
	require.NoError(t, err)
	assert.True(t, result.Changed)
}

func TestExecutor_ReduceEntity_Unchanged(t *testing.T) {
	tm := setupTestExecutor(t)
	defer tearDownTestExecutor(tm)

	tm.runner.EXPECT().Get(gomock.Any(), balanceRef.ID).Return(snapshot(3), nil)
	tm.runner.EXPECT().Refresh(gomock.Any(), balanceRef.ID).Return(snapshot(3), nil)

	result, err := tm.executor.ReduceEntity(context.Background(), balanceRef)
	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestExecutor_ReduceEntity_NonRetryableErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType string
	}{
		{name: "not found", err: fmt.Errorf("%w: balance x", domain.ErrEntityNotFound), errType: "EntityNotFound"},
		{name: "invalid id", err: fmt.Errorf("%w: x", domain.ErrInvalidEntityID), errType: "InvalidEntityID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestExecutor(t)
			defer tearDownTestExecutor(tm)

			tm.runner.EXPECT().Get(gomock.Any(), balanceRef.ID).Return(updater.Snapshot{}, fmt.Errorf("%w: balance", domain.ErrEntityNotFound))
			tm.runner.EXPECT().Refresh(gomock.Any(), balanceRef.ID).Return(updater.Snapshot{}, tt.err)

			_, err := tm.executor.ReduceEntity(context.Background(), balanceRef)
			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.True(t, appErr.NonRetryable())
			assert.Equal(t, tt.errType, appErr.Type())
		})
	}
}

func TestExecutor_ReduceEntity_UnknownKind(t *testing.T) {
	tm := setupTestExecutor(t)
	defer tearDownTestExecutor(tm)

	_, err := tm.executor.ReduceEntity(context.Background(), domain.EntityRef{Kind: domain.EntityKindOrder, ID: "0x01"})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "UnknownEntityKind", appErr.Type())
}

func TestExecutor_ReduceEntity_RetryExhaustedStaysRetryable(t *testing.T) {
	tm := setupTestExecutor(t)
	defer tearDownTestExecutor(tm)

	exhausted := fmt.Errorf("%w: %w", domain.ErrRetryExhausted, domain.ErrConflict)
	tm.runner.EXPECT().Get(gomock.Any(), balanceRef.ID).Return(snapshot(1), nil)
	tm.runner.EXPECT().Refresh(gomock.Any(), balanceRef.ID).Return(updater.Snapshot{}, exhausted)

	_, err := tm.executor.ReduceEntity(context.Background(), balanceRef)
	assert.ErrorIs(t, err, domain.ErrRetryExhausted)

	var appErr *temporal.ApplicationError
	assert.False(t, errors.As(err, &appErr))
}
