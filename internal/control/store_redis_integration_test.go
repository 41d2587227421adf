//go:build integration

package control

import (
	"context"
	"testing"

	"subsidyledger/pkg/testutil/containers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_PauseFlag(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	store := NewRedisStore(rc.Client)
	ctx := context.Background()

	require.NoError(t, rc.FlushAll(ctx))

	paused, err := store.Paused(ctx)
	require.NoError(t, err)
	assert.False(t, paused, "fresh instance starts unpaused")

	require.NoError(t, store.SetPaused(ctx, true))
	paused, err = store.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	// A second store over the same backend sees the same flag.
	other := NewRedisStore(rc.Client)
	paused, err = other.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused, "pause flag is shared across instances")

	require.NoError(t, store.SetPaused(ctx, false))
	paused, err = store.Paused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)
}
