package simulation

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/pkg/client"
	"github.com/picogrid/swarm-autonomy/pkg/models"
	"github.com/picogrid/swarm-autonomy/pkg/wire"
)

func startTestMirror(t *testing.T) (*MirrorServer, string) {
	t.Helper()
	m, err := NewMirrorServer(models.WorldInit{RunID: "run-1", Simulation: Name, Rows: 4, Cols: 5}, true)
	require.NoError(t, err)
	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	return m, strings.TrimPrefix(srv.URL, "http://")
}

func dialMirror(t *testing.T, addr string) *client.Observer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	obs, err := client.Dial(ctx, client.Config{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Close() })

	typ, payload, err := obs.Next()
	require.NoError(t, err)
	require.Equal(t, wire.TypeWorldInit, typ)
	var hello models.WorldInit
	require.NoError(t, wire.Decode(payload, &hello))
	require.Equal(t, "run-1", hello.RunID)
	return obs
}

func nextRequest(t *testing.T, m *MirrorServer) MirrorRequest {
	t.Helper()
	select {
	case req := <-m.Requests():
		return req
	case <-time.After(5 * time.Second):
		t.Fatal("no request arrived")
		return MirrorRequest{}
	}
}

func TestMirrorBroadcast(t *testing.T) {
	m, addr := startTestMirror(t)
	assert.NoError(t, m.Broadcast(wire.TypeSimTime, models.SimTime{Tick: 1}), "no observers is fine")

	a := dialMirror(t, addr)
	b := dialMirror(t, addr)
	assert.Len(t, m.Observers(), 2)

	require.NoError(t, m.Broadcast(wire.TypeStateUpdate, models.StateUpdate{
		Tick:   7,
		TimeMs: 700,
		Agents: []models.AgentState{{ID: 1, Mode: "search"}},
	}))

	for _, obs := range []*client.Observer{a, b} {
		typ, payload, err := obs.Next()
		require.NoError(t, err)
		require.Equal(t, wire.TypeStateUpdate, typ)
		var upd models.StateUpdate
		require.NoError(t, wire.Decode(payload, &upd))
		assert.Equal(t, int64(7), upd.Tick)
		require.Len(t, upd.Agents, 1)
		assert.Equal(t, "search", upd.Agents[0].Mode)
	}
}

func TestMirrorRequestsAndReply(t *testing.T) {
	m, addr := startTestMirror(t)
	obs := dialMirror(t, addr)

	require.NoError(t, obs.RequestBelief(3))
	req := nextRequest(t, m)
	assert.Equal(t, wire.TypeBeliefViewRequest, req.Type)
	assert.Equal(t, 3, req.AgentID)

	require.NoError(t, m.Reply(req.ObserverID, wire.TypeBeliefViewResponse, models.BeliefViewResponse{AgentID: 3, Found: true}))
	typ, payload, err := obs.Next()
	require.NoError(t, err)
	require.Equal(t, wire.TypeBeliefViewResponse, typ)
	var view models.BeliefViewResponse
	require.NoError(t, wire.Decode(payload, &view))
	assert.Equal(t, 3, view.AgentID)
	assert.True(t, view.Found)

	require.NoError(t, obs.SetStepRate(4))
	req = nextRequest(t, m)
	assert.Equal(t, wire.TypeSetStepRate, req.Type)
	assert.Equal(t, 4.0, req.RealtimeFactor)

	assert.NoError(t, m.Reply(999, wire.TypeSimTime, models.SimTime{}), "unknown observer is ignored")
}

func TestMirrorShutdown(t *testing.T) {
	m, addr := startTestMirror(t)
	obs := dialMirror(t, addr)

	var got models.Shutdown
	done := make(chan error, 1)
	go func() {
		done <- obs.Watch(context.Background(), client.Handlers{
			Shutdown: func(s models.Shutdown) { got = s },
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx, "all targets destroyed", 42))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("observer did not see the shutdown")
	}
	assert.Equal(t, "all targets destroyed", got.Reason)
	assert.Equal(t, int64(42), got.Tick)
	assert.Empty(t, m.Observers())
	assert.NoError(t, m.Broadcast(wire.TypeSimTime, models.SimTime{}), "broadcast after shutdown is a no-op")
}
