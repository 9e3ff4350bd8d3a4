package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
	"github.com/picogrid/swarm-autonomy/pkg/models"
)

type fakeAgent struct {
	pos  geo.Point
	ammo int
}

func (f fakeAgent) Position() geo.Point { return f.pos }
func (f fakeAgent) AmmoRemaining() int  { return f.ammo }

func TestSuccessProbability(t *testing.T) {
	ec := NewEngagementCalculator(EngagementConfig{RangeM: 100, KillProbability: 0.8, TypeModifiers: []float64{1, 0.5}}, rand.New(rand.NewSource(1)))

	assert.InDelta(t, 0.8, ec.SuccessProbability(0, 0), 1e-12)
	assert.InDelta(t, 0.56, ec.SuccessProbability(100, 0), 1e-12)
	assert.InDelta(t, 0.4, ec.SuccessProbability(0, 1), 1e-12)
	assert.InDelta(t, 0.8, ec.SuccessProbability(0, 5), 1e-12)
	assert.Zero(t, ec.SuccessProbability(101, 0))

	assert.True(t, ec.CanEngage(1, 100))
	assert.False(t, ec.CanEngage(0, 10))
	assert.False(t, ec.CanEngage(3, 100.5))
}

func TestCalculateEngagementIsReproducible(t *testing.T) {
	roll := func() []bool {
		ec := NewEngagementCalculator(EngagementConfig{RangeM: 50, KillProbability: 0.5}, rand.New(rand.NewSource(7)))
		var out []bool
		for i := 0; i < 20; i++ {
			out = append(out, ec.CalculateEngagement(1, geo.Point{}, 2, 0, geo.Point{North: 10}, 0).Success)
		}
		return out
	}
	assert.Equal(t, roll(), roll())

	ec := NewEngagementCalculator(EngagementConfig{RangeM: 50, KillProbability: 1}, rand.New(rand.NewSource(7)))
	res := ec.CalculateEngagement(1, geo.Point{}, 2, 0, geo.Point{North: 200}, 5)
	assert.False(t, res.Success)
	assert.Equal(t, 200.0, res.Distance)

	assert.Panics(t, func() { NewEngagementCalculator(EngagementConfig{}, nil) })
}

func TestTaskScorer(t *testing.T) {
	ec := NewEngagementCalculator(EngagementConfig{RangeM: 10, KillProbability: 0.9}, rand.New(rand.NewSource(1)))
	target := belief.NewTargetBelief(1, 2)
	target.Position = geo.Point{North: 100}

	near := NewTaskScorer(fakeAgent{pos: geo.Point{North: 90}, ammo: 1}, ec, 100)
	far := NewTaskScorer(fakeAgent{pos: geo.Point{North: -500}, ammo: 1}, ec, 100)
	empty := NewTaskScorer(fakeAgent{ammo: 0}, ec, 100)

	sNear, ok := near.Score(tasking.Monitor, target)
	require.True(t, ok)
	sFar, ok := far.Score(tasking.Monitor, target)
	require.True(t, ok)
	assert.Greater(t, sNear, sFar)

	attack, ok := near.Score(tasking.Attack, target)
	require.True(t, ok)
	assert.InDelta(t, sNear*0.9, attack, 1e-12)

	_, ok = empty.Score(tasking.Attack, target)
	assert.False(t, ok)

	target.Status.Destroyed = true
	_, ok = near.Score(tasking.Monitor, target)
	assert.False(t, ok)
}

func TestUpdateBufferFlush(t *testing.T) {
	ub := NewUpdateBuffer(1)
	ub.QueueAgentUpdate(models.AgentState{ID: 2, Mode: "search"})
	ub.QueueAgentUpdate(models.AgentState{ID: 1, Mode: "search"})
	ub.QueueAgentUpdate(models.AgentState{ID: 2, Mode: "monitor"})
	ub.QueueTargetUpdate(models.TargetState{ID: 9})
	assert.Equal(t, 3, ub.GetPendingCount())

	require.True(t, ub.Flush(1, 100, models.CommsStats{Transmitted: 4}))
	assert.Zero(t, ub.GetPendingCount())

	// Channel holds one batch; the next flush is dropped, not blocked.
	assert.False(t, ub.Flush(2, 200, models.CommsStats{}))

	got := <-ub.Updates()
	assert.Equal(t, int64(1), got.Tick)
	require.Len(t, got.Agents, 2)
	assert.Equal(t, 1, got.Agents[0].ID)
	assert.Equal(t, "monitor", got.Agents[1].Mode)
	assert.Equal(t, int64(4), got.Comms.Transmitted)

	stats := ub.GetStats()
	assert.Equal(t, int64(1), stats.BatchesSent)
	assert.Equal(t, int64(1), stats.BatchesDropped)
	assert.Equal(t, int64(4), stats.TotalUpdates)
}
