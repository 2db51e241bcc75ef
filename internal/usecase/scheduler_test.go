package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

func TestEnqueueBuild_Created(t *testing.T) {
	svc, m := newTestService()
	ctx := testContext(t)

	m.buildRepo.On("Enqueue", mock.Anything, mock.AnythingOfType("model.BuildQueueEntry")).
		Return("build-new-1", true, nil)

	result, err := svc.EnqueueBuild(ctx, "agent-lc-1", model.PriorityEmergency, model.TriggerAgentActivated)

	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "build-new-1", result.BuildID)

	calls := m.buildRepo.Calls
	require.Len(t, calls, 1)
	entry := calls[0].Arguments.Get(1).(model.BuildQueueEntry)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "agent-lc-1", entry.AgentID)
	assert.Equal(t, testCompanyID, entry.CompanyID)
	assert.Equal(t, model.PriorityEmergency, entry.Priority)
	assert.Equal(t, model.TriggerAgentActivated, entry.TriggerReason)
	assert.Equal(t, model.BuildStatusPending, entry.Status)
}

func TestEnqueueBuild_DuplicateSuppressed(t *testing.T) {
	svc, m := newTestService()
	ctx := testContext(t)

	m.buildRepo.On("Enqueue", mock.Anything, mock.AnythingOfType("model.BuildQueueEntry")).
		Return("build-existing-1", false, nil)

	result, err := svc.EnqueueBuild(ctx, "agent-lc-1", model.PriorityNormal, model.TriggerContentApproved)

	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "build-existing-1", result.BuildID)
}

func TestEnqueueBuild_InvalidPriority(t *testing.T) {
	svc, m := newTestService()
	ctx := testContext(t)

	for _, priority := range []model.BuildPriority{0, 5, -1} {
		result, err := svc.EnqueueBuild(ctx, "agent-lc-1", priority, model.TriggerManual)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	}
	m.buildRepo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestEnqueueBuild_UnknownTriggerReason(t *testing.T) {
	svc, m := newTestService()
	ctx := testContext(t)

	result, err := svc.EnqueueBuild(ctx, "agent-lc-1", model.PriorityNormal, "coffee_break")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	m.buildRepo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestEnqueueBuild_NoTenant(t *testing.T) {
	svc, _ := newTestService()

	result, err := svc.EnqueueBuild(context.Background(), "agent-lc-1", model.PriorityNormal, model.TriggerManual)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCancelPendingBuilds_Success(t *testing.T) {
	svc, m := newTestService()
	ctx := testContext(t)

	m.buildRepo.On("CancelPending", mock.Anything, "agent-lc-1").Return(int64(3), nil)

	cancelled, err := svc.CancelPendingBuilds(ctx, "agent-lc-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), cancelled)
}

func TestQueueStats_Success(t *testing.T) {
	svc, m := newTestService()
	ctx := testContext(t)

	m.buildRepo.On("Stats", mock.Anything).Return(&model.QueueStats{
		Pending:        4,
		Building:       1,
		CompletedToday: 12,
		FailedToday:    2,
	}, nil)

	stats, err := svc.QueueStats(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Pending)
	assert.Equal(t, int64(12), stats.CompletedToday)
}
