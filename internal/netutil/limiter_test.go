package netutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_BurstThenThrottle(t *testing.T) {
	l := NewHostLimiter(1, 2)

	assert.True(t, l.Allow("a.example.com"))
	assert.True(t, l.Allow("a.example.com"))
	assert.False(t, l.Allow("a.example.com"), "burst exhausted")

	// A different host has its own bucket
	assert.True(t, l.Allow("b.example.com"))
}

func TestHostLimiter_WaitHonorsContext(t *testing.T) {
	l := NewHostLimiter(0.001, 1)
	require.True(t, l.Allow("slow.example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "slow.example.com")
	require.Error(t, err)
}
