// internal/services/domain_action_service_test.go
package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/models"
	"github.com/javajoker/ticketing-backend/internal/repository/memstore"
	"github.com/javajoker/ticketing-backend/internal/services"
)

const testActionType models.DomainActionType = "TestAction"

func newActionQueue(t *testing.T) (*services.DomainActionService, *memstore.Store, *clock.Manual) {
	t.Helper()
	store := memstore.New()
	clk := clock.NewManual(testStart)
	return services.NewDomainActionService(store, clk), store, clk
}

func enqueue(t *testing.T, queue *services.DomainActionService, actionType models.DomainActionType, expiresIn time.Duration, attempts int) *models.DomainAction {
	t.Helper()
	action, err := queue.Enqueue(context.Background(), services.NewDomainAction{
		Type:        actionType,
		Payload:     models.JSONB{"n": 1},
		ExpiresIn:   expiresIn,
		MaxAttempts: attempts,
	})
	require.NoError(t, err)
	return action
}

func reload(t *testing.T, store *memstore.Store, action *models.DomainAction) *models.DomainAction {
	t.Helper()
	found, err := store.FindDomainAction(context.Background(), action.ID)
	require.NoError(t, err)
	return found
}

func TestDomainActionRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	queue, store, clk := newActionQueue(t)

	calls := 0
	queue.RegisterExecutor(testActionType, services.ActionExecutorFunc(func(ctx context.Context, action *models.DomainAction) error {
		calls++
		if calls < 3 {
			return errors.New("provider not ready")
		}
		return nil
	}))
	action := enqueue(t, queue, testActionType, time.Hour, 5)

	n, err := queue.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got := reload(t, store, action)
	assert.Equal(t, models.DomainActionStatusPending, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Equal(t, testStart.Add(30*time.Second), got.BlockedUntil)
	assert.Equal(t, "provider not ready", got.LastFailureReason)

	n, err = queue.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Advance(30 * time.Second)
	_, err = queue.ProcessBatch(ctx)
	require.NoError(t, err)
	got = reload(t, store, action)
	assert.Equal(t, 2, got.AttemptCount)
	assert.Equal(t, clk.Now().Add(time.Minute), got.BlockedUntil)

	clk.Advance(time.Minute)
	_, err = queue.ProcessBatch(ctx)
	require.NoError(t, err)
	got = reload(t, store, action)
	assert.Equal(t, models.DomainActionStatusSuccess, got.Status)
	assert.Equal(t, 3, got.AttemptCount)
	assert.Empty(t, got.LastFailureReason)
	assert.Equal(t, 3, calls)
}

func TestDomainActionErrorsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	queue, store, clk := newActionQueue(t)
	queue.RegisterExecutor(testActionType, services.ActionExecutorFunc(func(ctx context.Context, action *models.DomainAction) error {
		return errors.New("always broken")
	}))
	action := enqueue(t, queue, testActionType, time.Hour, 2)

	for i := 0; i < 3; i++ {
		_, err := queue.ProcessBatch(ctx)
		require.NoError(t, err)
		clk.Advance(5 * time.Minute)
	}

	got := reload(t, store, action)
	assert.Equal(t, models.DomainActionStatusErrored, got.Status)
	assert.Equal(t, 2, got.AttemptCount)
}

func TestDomainActionNotRerunAfterLastClaimLapses(t *testing.T) {
	ctx := context.Background()
	queue, store, clk := newActionQueue(t)
	calls := 0
	queue.RegisterExecutor(testActionType, services.ActionExecutorFunc(func(ctx context.Context, action *models.DomainAction) error {
		calls++
		return nil
	}))
	action := enqueue(t, queue, testActionType, time.Hour, 1)

	// A worker claims the final attempt and dies before reporting.
	claimed, err := store.ClaimDomainActions(ctx, clk.Now(), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	clk.Advance(2 * time.Minute)
	n, err := queue.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, calls)

	got := reload(t, store, action)
	assert.Equal(t, models.DomainActionStatusErrored, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestDomainActionExpires(t *testing.T) {
	ctx := context.Background()
	queue, store, clk := newActionQueue(t)
	queue.RegisterExecutor(testActionType, services.ActionExecutorFunc(func(ctx context.Context, action *models.DomainAction) error {
		return errors.New("still failing")
	}))
	action := enqueue(t, queue, testActionType, 10*time.Minute, 100)

	_, err := queue.ProcessBatch(ctx)
	require.NoError(t, err)
	clk.Advance(11 * time.Minute)

	n, err := queue.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.DomainActionStatusExpired, reload(t, store, action).Status)
}

func TestDomainActionWithoutExecutor(t *testing.T) {
	ctx := context.Background()
	queue, store, _ := newActionQueue(t)
	action := enqueue(t, queue, "Unregistered", time.Hour, 3)

	_, err := queue.ProcessBatch(ctx)
	require.NoError(t, err)

	got := reload(t, store, action)
	assert.Equal(t, models.DomainActionStatusPending, got.Status)
	assert.Contains(t, got.LastFailureReason, "no executor registered")
}

func TestDomainActionRecoversPanics(t *testing.T) {
	ctx := context.Background()
	queue, store, _ := newActionQueue(t)
	queue.RegisterExecutor(testActionType, services.ActionExecutorFunc(func(ctx context.Context, action *models.DomainAction) error {
		panic("nil map")
	}))
	action := enqueue(t, queue, testActionType, time.Hour, 1)

	_, err := queue.ProcessBatch(ctx)
	require.NoError(t, err)

	got := reload(t, store, action)
	assert.Equal(t, models.DomainActionStatusErrored, got.Status)
	assert.Contains(t, got.LastFailureReason, "panicked")
}

func TestDomainActionBatchSize(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	queue := services.NewDomainActionService(store, clock.NewManual(testStart), services.WithBatchSize(2))
	queue.RegisterExecutor(testActionType, services.ActionExecutorFunc(func(ctx context.Context, action *models.DomainAction) error {
		return nil
	}))
	for i := 0; i < 3; i++ {
		enqueue(t, queue, testActionType, time.Hour, 1)
	}

	n, err := queue.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = queue.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnqueueValidates(t *testing.T) {
	queue, _, _ := newActionQueue(t)

	_, err := queue.Enqueue(context.Background(), services.NewDomainAction{Type: testActionType, MaxAttempts: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = queue.Enqueue(context.Background(), services.NewDomainAction{Type: testActionType, ExpiresIn: time.Hour})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
