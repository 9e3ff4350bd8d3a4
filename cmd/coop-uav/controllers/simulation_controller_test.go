package controllers

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/comms"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/core"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/reporting"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
)

func testConfig() SimulationConfig {
	return SimulationConfig{
		TickMs:   100,
		MaxTicks: 1000,
		Belief:   belief.DefaultConfig(),
		Comms: comms.Config{
			RangeM:           1000,
			MaxRelayHops:     3,
			RelayProbability: 1,
		},
		Engagement: core.EngagementConfig{
			RangeM:          60,
			KillProbability: 1,
		},
		ScoreDistanceRefM:  250,
		MonitorDwellMs:     500,
		DetectionThreshold: 0.6,
		LaunchPattern:      "line",
		SearchPattern:      "random",
	}
}

func quietLogger() *reporting.SimulationLogger {
	sl := reporting.NewSimulationLogger("test")
	sl.SetConsole(nil, reporting.SeverityCritical)
	return sl
}

func at(north, east float64) *geo.Pose {
	return &geo.Pose{Point: geo.Point{North: north, East: east}}
}

func newController(t *testing.T, cfg SimulationConfig, specs []AgentSpec, truth *fakeTruth, sensorRange, speed float64, buffer *core.UpdateBuffer) *SimulationController {
	t.Helper()
	collab := Collaborators{
		Grid:       &fakeGrid{rows: 10, cols: 10, cellSize: 50},
		Sensor:     &perfectSensor{truth: truth, rangeM: sensorRange, numTypes: cfg.Belief.NumTargetTypes},
		Truth:      truth,
		NewPathing: pathingAt(speed),
	}
	sc, err := NewSimulationController(cfg, specs, collab, rand.New(rand.NewSource(1)), quietLogger(), buffer)
	require.NoError(t, err)
	return sc
}

func knows(sc *SimulationController, agentID, targetID int) bool {
	a, _ := sc.Agent(agentID)
	_, ok := a.Store.Target(targetID)
	return ok
}

// Agents sit in a chain 1 - 3 - 2 where 1 and 2 are out of each other's
// range. Agent 1 originates a snapshot before the first tick.
func relayChain(t *testing.T, relayProbability float64) *SimulationController {
	cfg := testConfig()
	cfg.Comms.RangeM = 250
	cfg.Comms.RelayProbability = relayProbability

	specs := []AgentSpec{
		{ID: 1, Start: at(0, 0)},
		{ID: 2, Start: at(0, 400)},
		{ID: 3, Start: at(0, 200)},
	}
	sc := newController(t, cfg, specs, newFakeTruth(), 10, 0, nil)

	a1, _ := sc.Agent(1)
	a1.Store.ObserveTarget(belief.Observation{TargetID: 7, TypeIndex: 0, TypeProb: 0.9, Position: geo.Point{North: 25, East: 25}, Confidence: 1}, 0)
	a1.Node.Transmit(comms.BeliefSnapshot{Belief: a1.Store.Snapshot()}, comms.BroadcastID, 0)
	return sc
}

func TestRelayReachesAgentOutOfRange(t *testing.T) {
	sc := relayChain(t, 1)

	require.False(t, sc.StepSimulation())
	assert.True(t, knows(sc, 3, 7), "direct neighbour should have the target after one tick")
	assert.False(t, knows(sc, 2, 7))

	require.False(t, sc.StepSimulation())
	assert.True(t, knows(sc, 2, 7), "relayed snapshot should arrive on the second tick")
	assert.Greater(t, sc.CommsStats().Relayed, int64(0))
}

func TestNoRelayWithZeroProbability(t *testing.T) {
	sc := relayChain(t, 0)

	sc.StepSimulation()
	assert.True(t, knows(sc, 3, 7))

	sc.StepSimulation()
	assert.False(t, knows(sc, 2, 7), "nothing may be relayed")
	assert.Zero(t, sc.CommsStats().Relayed)
	assert.Greater(t, sc.CommsStats().RelayDropped, int64(0))

	// Agent 3 still shares its own belief directly
	sc.StepSimulation()
	assert.True(t, knows(sc, 2, 7))
}

func TestSingleArmedAgentMonitorsThenDestroys(t *testing.T) {
	cfg := testConfig()
	truth := newFakeTruth(TrueTarget{ID: 1, Type: 0, Pose: geo.Pose{Point: geo.Point{North: 125, East: 25}}})
	buffer := core.NewUpdateBuffer(2000)
	sc := newController(t, cfg, []AgentSpec{{ID: 1, HasWeapon: true, Ammo: 10, Start: at(25, 25)}}, truth, 120, 20, buffer)
	a, _ := sc.Agent(1)

	require.False(t, sc.StepSimulation())
	assert.Equal(t, ModeMonitor, a.Mode(), "first sighting claims the monitor task")
	key, ok := a.Task()
	require.True(t, ok)
	assert.Equal(t, 1, key.TargetID)

	finished := false
	for i := 0; i < cfg.MaxTicks && !finished; i++ {
		finished = sc.StepSimulation()
	}
	require.True(t, finished)

	done, reason := sc.Finished()
	assert.True(t, done)
	assert.Equal(t, ReasonAllDestroyed, reason)

	tt, _ := truth.Target(1)
	assert.True(t, tt.Destroyed)

	tb, ok := a.Store.Target(1)
	require.True(t, ok)
	assert.True(t, tb.Status.Destroyed)
	assert.Equal(t, tasking.Complete, tb.Status.Monitor.State)
	assert.Equal(t, tasking.Complete, tb.Status.Attack.State)
	assert.Equal(t, 1, tb.Status.Attack.AgentID)
	assert.Equal(t, ModeSearch, a.Mode())
	assert.Less(t, a.AmmoRemaining(), 10)

	// Finished runs stay finished
	tick := sc.Tick()
	assert.True(t, sc.StepSimulation())
	assert.Equal(t, tick, sc.Tick())

	out := sc.Outcome()
	assert.Equal(t, ReasonAllDestroyed, out.Reason)
	assert.Equal(t, 1, out.TargetsDestroyed)
	assert.Equal(t, 1, out.Targets)
	assert.Zero(t, out.MirrorDropped)

	assert.Equal(t, int64(100), out.AllFoundMs, "seen on the first tick")
	assert.Equal(t, out.SimTimeMs, out.AllDestroyedMs)
	assert.Zero(t, out.OutOfAmmoMs)
	require.Len(t, out.TargetTimes, 1)
	assert.Equal(t, int64(100), out.TargetTimes[0].FoundMs)
	assert.Equal(t, out.AllDestroyedMs, out.TargetTimes[0].DestroyedMs)
	assert.Equal(t, out.AllDestroyedMs, out.BelievedDestroyedMs[1])

	stats := buffer.GetStats()
	assert.Equal(t, tick, stats.BatchesSent)
}

func TestUnarmedMonitorHandsAttackToArmedAgent(t *testing.T) {
	cfg := testConfig()
	truth := newFakeTruth(TrueTarget{ID: 4, Type: 1, Pose: geo.Pose{Point: geo.Point{North: 125, East: 125}}})
	specs := []AgentSpec{
		{ID: 1, HasWeapon: false, Start: at(125, 25)},
		{ID: 2, HasWeapon: true, Ammo: 5, Start: at(450, 450)},
	}
	sc := newController(t, cfg, specs, truth, 120, 50, nil)
	scout, _ := sc.Agent(1)
	striker, _ := sc.Agent(2)

	sc.StepSimulation()
	assert.Equal(t, ModeMonitor, scout.Mode())

	finished := false
	sawStrikerAttack := false
	for i := 0; i < cfg.MaxTicks && !finished; i++ {
		finished = sc.StepSimulation()
		if striker.Mode() == ModeAttack {
			sawStrikerAttack = true
		}
		assert.NotEqual(t, ModeAttack, scout.Mode(), "unarmed agents never attack")
	}
	require.True(t, finished)
	_, reason := sc.Finished()
	assert.Equal(t, ReasonAllDestroyed, reason)
	assert.True(t, sawStrikerAttack)
	assert.Less(t, striker.AmmoRemaining(), 5)
	assert.Zero(t, scout.AmmoRemaining())
}

func TestFleetOutOfAmmoEndsRun(t *testing.T) {
	cfg := testConfig()
	truth := newFakeTruth(
		TrueTarget{ID: 1, Type: 0, Pose: geo.Pose{Point: geo.Point{North: 125, East: 25}}},
		TrueTarget{ID: 2, Type: 0, Pose: geo.Pose{Point: geo.Point{North: 475, East: 475}}},
	)
	sc := newController(t, cfg, []AgentSpec{{ID: 1, HasWeapon: true, Ammo: 1, Start: at(25, 25)}}, truth, 120, 20, nil)

	finished := false
	for i := 0; i < cfg.MaxTicks && !finished; i++ {
		finished = sc.StepSimulation()
	}
	require.True(t, finished)

	_, reason := sc.Finished()
	assert.Equal(t, ReasonOutOfAmmo, reason)
	assert.Less(t, sc.Tick(), int64(cfg.MaxTicks))

	out := sc.Outcome()
	assert.Equal(t, 1, out.TargetsDestroyed)
	assert.Equal(t, out.SimTimeMs, out.OutOfAmmoMs)
	assert.Zero(t, out.AllDestroyedMs)
	assert.Zero(t, out.AllFoundMs, "the second target was never seen")
	require.Len(t, out.TargetTimes, 2)
	assert.Positive(t, out.TargetTimes[0].DestroyedMs)
	assert.Zero(t, out.TargetTimes[1].FoundMs)
	assert.Empty(t, out.BelievedDestroyedMs, "one of two targets is still unaccounted for")
}

func TestRequireExplorationHoldsRunOpen(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTicks = 150
	cfg.RequireExploration = true
	truth := newFakeTruth(TrueTarget{ID: 1, Type: 0, Pose: geo.Pose{Point: geo.Point{North: 125, East: 25}}})
	sc := newController(t, cfg, []AgentSpec{{ID: 1, HasWeapon: true, Ammo: 10, Start: at(25, 25)}}, truth, 120, 20, nil)

	finished := false
	for i := 0; i < cfg.MaxTicks && !finished; i++ {
		finished = sc.StepSimulation()
	}
	require.True(t, finished)

	_, reason := sc.Finished()
	assert.Equal(t, ReasonMaxTicks, reason, "a strike alone does not end the run")

	out := sc.Outcome()
	assert.Positive(t, out.AllDestroyedMs)
	assert.Less(t, out.AllDestroyedMs, out.SimTimeMs)
	assert.Zero(t, out.FleetWorldKnownMs)
}

func TestFleetWorldKnownNeedsHalfTheFleet(t *testing.T) {
	build := func(specs []AgentSpec) *SimulationController {
		cfg := testConfig()
		cfg.Comms.RangeM = 100
		truth := newFakeTruth()
		collab := Collaborators{
			Grid:       &fakeGrid{rows: 2, cols: 2, cellSize: 50},
			Sensor:     &perfectSensor{truth: truth, rangeM: 120, numTypes: cfg.Belief.NumTargetTypes},
			Truth:      truth,
			NewPathing: pathingAt(0),
		}
		sc, err := NewSimulationController(cfg, specs, collab, rand.New(rand.NewSource(1)), quietLogger(), nil)
		require.NoError(t, err)
		return sc
	}

	// Agent 1 sees the whole grid; the others are far outside it and out of
	// radio range
	half := build([]AgentSpec{{ID: 1, Start: at(50, 50)}, {ID: 2, Start: at(1000, 1000)}})
	half.StepSimulation()
	out := half.Outcome()
	assert.Equal(t, int64(100), out.FleetWorldKnownMs)
	assert.Equal(t, map[int]int64{1: 100}, out.WorldKnownMs)

	third := build([]AgentSpec{{ID: 1, Start: at(50, 50)}, {ID: 2, Start: at(1000, 1000)}, {ID: 3, Start: at(2000, 2000)}})
	third.StepSimulation()
	out = third.Outcome()
	assert.Zero(t, out.FleetWorldKnownMs)
	assert.Len(t, out.WorldKnownMs, 1)
}

func TestDetectionReachesNeighbourInSameTick(t *testing.T) {
	cfg := testConfig()
	truth := newFakeTruth(TrueTarget{ID: 3, Type: 0, Pose: geo.Pose{Point: geo.Point{North: 75, East: 25}}})
	specs := []AgentSpec{
		{ID: 1, Start: at(25, 25)},
		{ID: 2, Start: at(25, 225)},
	}
	sc := newController(t, cfg, specs, truth, 60, 0, nil)

	require.False(t, sc.StepSimulation())
	assert.True(t, knows(sc, 1, 3))
	assert.True(t, knows(sc, 2, 3), "the announce sent after sensing is delivered before agent 2 runs")
}

func TestMaxTicksTerminates(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTicks = 5
	sc := newController(t, cfg, []AgentSpec{{ID: 1}, {ID: 2}}, newFakeTruth(), 50, 20, nil)

	for i := 0; i < 4; i++ {
		assert.False(t, sc.StepSimulation())
	}
	assert.True(t, sc.StepSimulation())

	done, reason := sc.Finished()
	assert.True(t, done)
	assert.Equal(t, ReasonMaxTicks, reason)
	assert.Equal(t, int64(5), sc.Tick())
	assert.Equal(t, int64(500), sc.NowMs())
}

func TestBeliefView(t *testing.T) {
	cfg := testConfig()
	truth := newFakeTruth(TrueTarget{ID: 9, Type: 0, Pose: geo.Pose{Point: geo.Point{North: 50, East: 50}}})
	sc := newController(t, cfg, []AgentSpec{{ID: 1, Start: at(25, 25)}}, truth, 120, 0, nil)
	sc.StepSimulation()

	view := sc.BeliefView(1)
	assert.True(t, view.Found)
	assert.Equal(t, int64(100), view.TimeMs)
	require.Len(t, view.Targets, 1)
	assert.Equal(t, 9, view.Targets[0].ID)
	assert.Equal(t, 1, view.Targets[0].Monitor.AgentID)
	assert.Equal(t, "assigned", view.Targets[0].Monitor.State)
	assert.Less(t, view.Uncertainty, 1.0)

	missing := sc.BeliefView(42)
	assert.False(t, missing.Found)
	assert.Empty(t, missing.Targets)
}

func TestNewSimulationControllerValidation(t *testing.T) {
	truth := newFakeTruth()
	collab := Collaborators{
		Grid:       &fakeGrid{rows: 4, cols: 4, cellSize: 50},
		Sensor:     &perfectSensor{truth: truth, rangeM: 50, numTypes: 2},
		Truth:      truth,
		NewPathing: pathingAt(10),
	}
	rng := rand.New(rand.NewSource(1))

	_, err := NewSimulationController(testConfig(), nil, collab, rng, quietLogger(), nil)
	assert.Error(t, err)

	_, err = NewSimulationController(testConfig(), []AgentSpec{{ID: 1}, {ID: 1}}, collab, rng, quietLogger(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.SearchPattern = "spiral"
	_, err = NewSimulationController(cfg, []AgentSpec{{ID: 1}}, collab, rng, quietLogger(), nil)
	assert.Error(t, err)

	assert.Panics(t, func() {
		_, _ = NewSimulationController(testConfig(), []AgentSpec{{ID: 1}}, collab, nil, quietLogger(), nil)
	})
}
