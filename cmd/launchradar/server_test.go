package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchradar/launchradar/internal/cycle"
	"github.com/launchradar/launchradar/internal/metrics"
	"github.com/launchradar/launchradar/internal/store"
)

func opsFixture(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	sessions := store.NewMemory(0)
	srv := newOpsServer("127.0.0.1:0", sessions, metrics.NewRegistry())
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, sessions
}

func TestOpsServer_Healthz(t *testing.T) {
	ts, _ := opsFixture(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestOpsServer_SessionLookup(t *testing.T) {
	ts, sessions := opsFixture(t)

	snap := cycle.Snapshot{
		ID:        "cyc-9",
		Status:    cycle.StatusCompleted,
		Phase:     cycle.PhaseCompleted,
		Progress:  100,
		StartedAt: time.Now(),
	}
	snap.Counters.Acquired = 12
	require.NoError(t, sessions.Create(context.Background(), snap))

	resp, err := ts.Client().Get(ts.URL + "/sessions/cyc-9")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var got cycle.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "cyc-9", got.ID)
	assert.Equal(t, cycle.StatusCompleted, got.Status)
	assert.Equal(t, 12, got.Counters.Acquired)
}

func TestOpsServer_SessionNotFound(t *testing.T) {
	ts, _ := opsFixture(t)

	resp, err := ts.Client().Get(ts.URL + "/sessions/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestOpsServer_RecentSessions(t *testing.T) {
	ts, sessions := opsFixture(t)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, sessions.Create(context.Background(), cycle.Snapshot{ID: id, Status: cycle.StatusCompleted}))
	}

	resp, err := ts.Client().Get(ts.URL + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var got []cycle.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got, 2)
}

func TestOpsServer_MetricsEndpoint(t *testing.T) {
	ts, _ := opsFixture(t)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
