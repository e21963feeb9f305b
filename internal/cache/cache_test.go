package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	m := NewMemory(100)
	defer m.Close()
	ctx := context.Background()

	_, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	m.Set(ctx, "fp1", []byte("content"), time.Hour)
	val, ok := m.Get(ctx, "fp1")
	require.True(t, ok)
	assert.Equal(t, []byte("content"), val)

	m.Delete(ctx, "fp1")
	_, ok = m.Get(ctx, "fp1")
	assert.False(t, ok)
}

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory(100)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "short", []byte("x"), 10*time.Millisecond)
	_, ok := m.Get(ctx, "short")
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = m.Get(ctx, "short")
	assert.False(t, ok, "expired entry must read as a miss")
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	m := NewMemory(100)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "pin", []byte("x"), 0)
	time.Sleep(5 * time.Millisecond)
	_, ok := m.Get(ctx, "pin")
	assert.True(t, ok)
}

func TestMemory_BoundedEviction(t *testing.T) {
	m := NewMemory(2)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "a", []byte("1"), time.Hour)
	time.Sleep(time.Millisecond)
	m.Set(ctx, "b", []byte("2"), time.Hour)
	time.Sleep(time.Millisecond)
	m.Set(ctx, "c", []byte("3"), time.Hour)

	_, okA := m.Get(ctx, "a")
	_, okC := m.Get(ctx, "c")
	assert.False(t, okA, "oldest entry evicted at capacity")
	assert.True(t, okC)
}

func TestMemory_OverwriteIsIdempotent(t *testing.T) {
	m := NewMemory(100)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "fp", []byte("same"), time.Hour)
	m.Set(ctx, "fp", []byte("same"), time.Hour)

	val, ok := m.Get(ctx, "fp")
	require.True(t, ok)
	assert.Equal(t, []byte("same"), val)
}
