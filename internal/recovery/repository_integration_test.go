//go:build integration

package recovery_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/recovery"
	"StudentPortal/internal/testutil/mongotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoSessionStore(t *testing.T) {
	store := recovery.NewMongoSessionStore(mongotest.Start(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rc := &recovery.Context{ID: "sid-1", Stage: recovery.StageAwaitingCode, Email: "alice@x.com", ExpiresAt: now.Add(15 * time.Minute), UpdatedAt: now}
	require.NoError(t, store.Save(ctx, rc))

	got, err := store.Get(ctx, "sid-1", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, recovery.StageAwaitingCode, got.Stage)

	got, err = store.Get(ctx, "sid-1", now.Add(16*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got, "expired context must read as absent")

	wrongEmail := *rc
	wrongEmail.Email = "bob@x.com"
	wrongEmail.Stage = recovery.StageAwaitingReset
	assert.ErrorIs(t, store.Advance(ctx, &wrongEmail, recovery.StageAwaitingCode, now), autherr.ErrInvalidFlowState)

	rc.Stage = recovery.StageAwaitingReset
	rc.Role = "student"
	require.NoError(t, store.Advance(ctx, rc, recovery.StageAwaitingCode, now))
	got, err = store.Get(ctx, "sid-1", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, recovery.StageAwaitingReset, got.Stage)
	assert.Equal(t, "student", got.Role)

	taken, err := store.Take(ctx, "sid-1", recovery.StageAwaitingCode, now)
	require.NoError(t, err)
	assert.Nil(t, taken, "wrong stage must not be taken")

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taken, err := store.Take(ctx, "sid-1", recovery.StageAwaitingReset, now)
			assert.NoError(t, err)
			if taken != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	require.NoError(t, store.Delete(ctx, "missing"))

	gone := &recovery.Context{ID: "sid-1", Stage: recovery.StageAwaitingReset, Email: "alice@x.com", ExpiresAt: now.Add(time.Hour), UpdatedAt: now}
	assert.ErrorIs(t, store.Advance(ctx, gone, recovery.StageAwaitingCode, now), autherr.ErrInvalidFlowState)
	got, err = store.Get(ctx, "sid-1", now)
	require.NoError(t, err)
	assert.Nil(t, got, "advance must not recreate a deleted context")
}
