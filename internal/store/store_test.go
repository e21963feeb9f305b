package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchradar/launchradar/internal/cycle"
)

func snap(id string, status cycle.Status) cycle.Snapshot {
	return cycle.Snapshot{
		ID:        id,
		Status:    status,
		Phase:     cycle.PhaseAcquiring,
		Progress:  35,
		StartedAt: time.Now(),
	}
}

func TestMemory_CreateGetUpdate(t *testing.T) {
	st := NewMemory(0)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, snap("s1", cycle.StatusRunning)))
	assert.Error(t, st.Create(ctx, snap("s1", cycle.StatusRunning)), "duplicate id rejected")

	got, err := st.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, cycle.StatusRunning, got.Status)

	updated := snap("s1", cycle.StatusCompleted)
	updated.Counters.Acquired = 5
	require.NoError(t, st.Update(ctx, updated))

	got, err = st.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, cycle.StatusCompleted, got.Status)
	assert.Equal(t, 5, got.Counters.Acquired)
}

func TestMemory_MissingSession(t *testing.T) {
	st := NewMemory(0)
	ctx := context.Background()

	_, err := st.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.Update(ctx, snap("nope", cycle.StatusRunning)), ErrNotFound)
}

func TestMemory_BoundedEviction(t *testing.T) {
	st := NewMemory(2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, st.Create(ctx, snap(fmt.Sprintf("s%d", i), cycle.StatusRunning)))
	}

	_, err := st.Get(ctx, "s0")
	assert.ErrorIs(t, err, ErrNotFound, "oldest session evicted")
	_, err = st.Get(ctx, "s2")
	assert.NoError(t, err)
}

func TestMemory_RecentNewestFirst(t *testing.T) {
	st := NewMemory(0)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, st.Create(ctx, snap(fmt.Sprintf("s%d", i), cycle.StatusCompleted)))
	}

	recent, err := st.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s3", recent[0].ID)
	assert.Equal(t, "s2", recent[1].ID)
}
