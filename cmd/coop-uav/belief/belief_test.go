package belief

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
)

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

func TestCellMergeFixture(t *testing.T) {
	const alpha = 0.7

	receiver := NewCellBelief(1)
	receiver.UpdateLocal(0, 0, 0, 0)
	source := NewCellBelief(1)
	source.UpdateLocal(0, 0.5, 10, 1000)

	require.True(t, receiver.Merge(&source, alpha))
	got := receiver.Estimates[0]
	assert.InDelta(t, 0.35, got.Probability, 1e-4)
	assert.InDelta(t, 7.0, got.Heading, 1e-2)
	assert.Equal(t, int64(300), got.Timestamp)

	require.True(t, receiver.Merge(&source, alpha))
	got = receiver.Estimates[0]
	assert.InDelta(t, 0.455, got.Probability, 1e-4)
	assert.InDelta(t, 9.1, got.Heading, 1e-2)
	assert.Equal(t, int64(510), got.Timestamp)
}

func TestMergeTimestampTruncates(t *testing.T) {
	// (1-0.9)*1000 is just under 100 in floating point
	receiver := NewCellBelief(1)
	source := NewCellBelief(1)
	source.UpdateLocal(0, 1, 0, 1000)
	require.True(t, receiver.Merge(&source, 0.9))
	assert.Equal(t, int64(99), receiver.Estimates[0].Timestamp)

	local := NewTargetBelief(3, 2)
	remote := NewTargetBelief(3, 2)
	remote.Timestamp = 1000
	require.True(t, local.Merge(remote, 0.9))
	assert.Equal(t, int64(99), local.Timestamp)
}

func TestCellMergeFreshnessGate(t *testing.T) {
	a := NewCellBelief(2)
	a.UpdateLocal(0, 0.9, 45, 500)
	a.UpdateLocal(1, 0.1, 90, 500)
	before := a.Clone()

	older := NewCellBelief(2)
	older.UpdateLocal(0, 0.2, 0, 400)
	older.UpdateLocal(1, 0.8, 0, 500)

	assert.False(t, a.Merge(&older, 0.5))
	assert.Equal(t, before, a)
}

func TestCellMergeIsIndependentPerType(t *testing.T) {
	a := NewCellBelief(2)
	b := NewCellBelief(2)
	b.UpdateLocal(1, 1, 0, 100)

	require.True(t, a.Merge(&b, 0.5))
	assert.Equal(t, Estimate{Probability: 0.5}, a.Estimates[0])
	assert.InDelta(t, 0.75, a.Estimates[1].Probability, 1e-12)
	assert.Equal(t, int64(50), a.Estimates[1].Timestamp)
}

func TestMergeDoesNotOscillate(t *testing.T) {
	a := NewCellBelief(1)
	a.UpdateLocal(0, 1, 0, 1000)
	b := NewCellBelief(1)
	b.UpdateLocal(0, 0, 0, 0)

	require.True(t, b.Merge(&a, 0.5))
	// b is now fresher than before but still older than a.
	assert.Less(t, b.Estimates[0].Timestamp, a.Estimates[0].Timestamp)
	assert.False(t, a.Merge(&b, 0.5))
	assert.Equal(t, 1.0, a.Estimates[0].Probability)
}

func TestCellIndexOutOfRangePanics(t *testing.T) {
	c := NewCellBelief(2)
	assert.Panics(t, func() { c.UpdateLocal(2, 0.5, 0, 1) })
}

func TestTargetTypeProbabilitiesStayNormalized(t *testing.T) {
	tb := NewTargetBelief(1, 3)
	writes := []struct {
		idx  int
		prob float64
	}{
		{0, 0.9}, {1, 0.9}, {2, 0}, {0, 1}, {1, 0.3}, {2, 0.999},
	}
	for _, w := range writes {
		tb.SetTypeProbability(w.idx, w.prob, 0.001)
		assert.InDelta(t, 1.0, sum(tb.TypeProbabilities), 1e-9)
		for _, p := range tb.TypeProbabilities {
			assert.Greater(t, p, 0.0)
		}
	}
}

func TestTargetFloorDisabled(t *testing.T) {
	tb := NewTargetBelief(1, 2)
	tb.SetTypeProbability(0, 0, 0)
	assert.Equal(t, []float64{0, 1}, tb.TypeProbabilities)

	idx, p := tb.MostLikelyType()
	assert.Equal(t, 1, idx)
	assert.Equal(t, 1.0, p)
}

func TestTargetCollapsedVectorFallsBackToUniform(t *testing.T) {
	tb := NewTargetBelief(1, 2)
	tb.SetTypeProbability(1, 0, 0)
	assert.InDelta(t, 1.0, sum(tb.TypeProbabilities), 1e-9)

	tb.SetTypeProbability(0, 0, 0)
	assert.InDelta(t, 1.0, sum(tb.TypeProbabilities), 1e-9)
	assert.Equal(t, []float64{0.5, 0.5}, tb.TypeProbabilities)

	three := NewTargetBelief(2, 3)
	for i := 0; i < 3; i++ {
		three.SetTypeProbability(i, 0, 0)
		assert.InDelta(t, 1.0, sum(three.TypeProbabilities), 1e-9)
	}
}

func TestTargetMerge(t *testing.T) {
	local := NewTargetBelief(5, 2)
	local.Timestamp = 100
	local.Confidence = 0.2

	remote := NewTargetBelief(5, 2)
	remote.TypeProbabilities = []float64{0.8, 0.2}
	remote.Position = geo.Point{North: 100, East: 40}
	remote.Heading = 20
	remote.Confidence = 1
	remote.Timestamp = 300
	remote.Status.Attack = tasking.TaskRecord{AgentID: 9, Score: 0.4, State: tasking.Bidding}

	require.True(t, local.Merge(remote, 0.5))
	assert.InDelta(t, 0.65, local.TypeProbabilities[0], 1e-12)
	assert.InDelta(t, 1.0, sum(local.TypeProbabilities), 1e-9)
	assert.Equal(t, geo.Point{North: 50, East: 20}, local.Position)
	assert.InDelta(t, 10.0, local.Heading, 1e-12)
	assert.InDelta(t, 0.6, local.Confidence, 1e-12)
	assert.Equal(t, int64(200), local.Timestamp)
	assert.Equal(t, 9, local.Status.Attack.AgentID)

	other := NewTargetBelief(6, 2)
	other.Timestamp = 10000
	assert.False(t, local.Merge(other, 0.5))
}

func TestTargetMergeStaleStillMergesStatus(t *testing.T) {
	local := NewTargetBelief(1, 2)
	local.Timestamp = 1000
	stale := local.Clone()
	stale.Timestamp = 10
	stale.Position = geo.Point{North: 999}
	stale.Status.Monitor = tasking.TaskRecord{AgentID: 2, Score: 0.1, State: tasking.Complete}

	assert.True(t, local.Merge(stale, 0.5))
	assert.Equal(t, geo.Point{}, local.Position)
	assert.Equal(t, tasking.Complete, local.Status.Monitor.State)
	assert.False(t, local.Merge(stale, 0.5))
}

func TestTargetDecayFloorsAtZero(t *testing.T) {
	tb := NewTargetBelief(1, 1)
	tb.Confidence = 0.05
	tb.Decay(0.02)
	assert.InDelta(t, 0.03, tb.Confidence, 1e-12)
	tb.Decay(1)
	assert.Equal(t, 0.0, tb.Confidence)
}

func TestWorldMergeAdoptsUnknownTargets(t *testing.T) {
	a := NewWorldBelief(1, 2, 2, 2)
	b := NewWorldBelief(2, 2, 2, 2)
	b.Cell(1, 1).UpdateLocal(0, 0.9, 0, 50)
	remote := NewTargetBelief(7, 2)
	remote.Timestamp = 50
	b.Targets[7] = remote

	stats := a.Merge(b, 0.5)
	assert.Equal(t, MergeStats{CellsUpdated: 1, TargetsAdded: 1}, stats)
	assert.True(t, stats.Changed())

	// The adopted target is a copy, not shared state.
	remote.Position = geo.Point{North: 1}
	assert.Equal(t, geo.Point{}, a.Targets[7].Position)

	assert.False(t, a.Merge(a.Clone(), 0.5).Changed())
}

func TestWorldCloneIsDeep(t *testing.T) {
	w := NewWorldBelief(1, 1, 2, 2)
	w.Targets[3] = NewTargetBelief(3, 2)

	c := w.Clone()
	c.Cell(0, 1).UpdateLocal(0, 1, 0, 1)
	c.Targets[3].TypeProbabilities[0] = 0.99

	assert.Equal(t, 0.5, w.Cell(0, 1).Estimates[0].Probability)
	assert.Equal(t, 0.5, w.Targets[3].TypeProbabilities[0])
}

func TestUncertaintyAndWorldKnown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumTargetTypes = 2
	cfg.WorldKnownUncertainty = 0.3
	s := NewStore(cfg, 1, 1, 2)

	assert.InDelta(t, 1.0, s.World().Uncertainty(), 1e-12)
	_, known := s.CheckWorldKnown(100)
	assert.False(t, known)

	s.ObserveCell(0, 0, 0, 0, 0, 200)
	s.ObserveCell(0, 0, 1, 0, 0, 200)
	s.ObserveCell(0, 1, 0, 1, 0, 200)
	s.ObserveCell(0, 1, 1, 0, 0, 200)
	at, known := s.CheckWorldKnown(300)
	assert.True(t, known)
	assert.Equal(t, int64(300), at)

	s.ObserveCell(0, 0, 0, 0.5, 0, 400)
	at, known = s.CheckWorldKnown(500)
	assert.True(t, known)
	assert.Equal(t, int64(300), at)
}

func TestBelievesAllTargetsDestroyed(t *testing.T) {
	w := NewWorldBelief(1, 1, 1, 1)
	assert.False(t, w.BelievesAllTargetsDestroyed(0))

	w.Targets[1] = NewTargetBelief(1, 1)
	w.Targets[2] = NewTargetBelief(2, 1)
	w.Targets[1].Status.Destroyed = true
	assert.False(t, w.BelievesAllTargetsDestroyed(2))

	w.Targets[2].Status.Destroyed = true
	assert.True(t, w.BelievesAllTargetsDestroyed(2))
	assert.False(t, w.BelievesAllTargetsDestroyed(3))
}

func TestStoreObserveDecayAndBroadcast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceDecayPerSec = 0.5
	s := NewStore(cfg, 4, 3, 3)

	created := s.ObserveTarget(Observation{TargetID: 11, TypeIndex: 1, TypeProb: 0.8, Confidence: 1}, 100)
	assert.True(t, created)
	assert.False(t, s.ObserveTarget(Observation{TargetID: 11, TypeIndex: 1, TypeProb: 0.9, Confidence: 1}, 200))

	tb, ok := s.Target(11)
	require.True(t, ok)
	assert.Equal(t, int64(200), tb.Timestamp)

	s.Decay(500)
	assert.InDelta(t, 0.75, tb.Confidence, 1e-12)

	assert.True(t, s.BroadcastDue(0))
	assert.False(t, s.BroadcastDue(999))
	assert.True(t, s.BroadcastDue(1000))
	assert.False(t, s.BroadcastDue(1500))

	snap := s.Snapshot()
	snap.Targets[11].Confidence = 0
	assert.InDelta(t, 0.75, tb.Confidence, 1e-12)
	assert.False(t, math.IsNaN(s.World().Uncertainty()))
}

func TestCellUncertainty(t *testing.T) {
	c := NewCellBelief(2)
	assert.InDelta(t, 1.0, c.Uncertainty(), 1e-12)

	c.UpdateLocal(0, 0, 0, 10)
	assert.InDelta(t, 0.5, c.Uncertainty(), 1e-12)

	c.UpdateLocal(1, 1, 0, 10)
	assert.Zero(t, c.Uncertainty())
}
