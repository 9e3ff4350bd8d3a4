package simulation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/controllers"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
)

func testWorld(t *testing.T) *GridWorld {
	t.Helper()
	w, err := NewGridWorld(10, 8, 50)
	require.NoError(t, err)
	return w
}

func TestGridWorldCells(t *testing.T) {
	w := testWorld(t)

	c, ok := w.CellAt(geo.Point{North: 125, East: 399})
	require.True(t, ok)
	assert.Equal(t, controllers.Cell{Row: 2, Col: 7}, c)

	_, ok = w.CellAt(geo.Point{North: 500, East: 10})
	assert.False(t, ok, "north edge is outside")
	_, ok = w.CellAt(geo.Point{North: 10, East: -0.1})
	assert.False(t, ok)

	assert.Equal(t, geo.Point{North: 125, East: 375}, w.CellCenter(controllers.Cell{Row: 2, Col: 7}))

	cells := w.CellsWithin(geo.Circle{Center: geo.Point{North: 125, East: 125}, Radius: 50})
	assert.ElementsMatch(t, []controllers.Cell{
		{Row: 1, Col: 2}, {Row: 2, Col: 1}, {Row: 2, Col: 2}, {Row: 2, Col: 3}, {Row: 3, Col: 2},
	}, cells)

	corner := w.CellsWithin(geo.Circle{Center: geo.Point{North: 0, East: 0}, Radius: 40})
	assert.Equal(t, []controllers.Cell{{Row: 0, Col: 0}}, corner)

	_, err := NewGridWorld(0, 3, 10)
	assert.Error(t, err)
	_, err = NewGridWorld(3, 3, 0)
	assert.Error(t, err)
}

func TestPlaceTargets(t *testing.T) {
	w := testWorld(t)

	a, err := PlaceTargets(w, 20, 3, []float64{0, 1, 0}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	b, err := PlaceTargets(w, 20, 3, []float64{0, 1, 0}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Equal(t, a.Targets(), b.Targets(), "same seed places the same targets")

	targets := a.Targets()
	require.Len(t, targets, 20)
	for i, tgt := range targets {
		assert.Equal(t, i, tgt.ID)
		assert.Equal(t, 1, tgt.Type)
		assert.True(t, w.Contains(tgt.Pose.Point))
	}

	_, err = PlaceTargets(w, 3, 2, []float64{1}, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
	_, err = PlaceTargets(w, -1, 2, nil, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestTargetFieldDestroy(t *testing.T) {
	tf := NewTargetField(controllers.TrueTarget{ID: 4, Type: 1})

	assert.True(t, tf.Destroy(4))
	assert.False(t, tf.Destroy(4), "already destroyed")
	assert.False(t, tf.Destroy(9))

	got, ok := tf.Target(4)
	require.True(t, ok)
	assert.True(t, got.Destroyed)
	_, ok = tf.Target(9)
	assert.False(t, ok)
}

func TestStraightPathing(t *testing.T) {
	w := testWorld(t)
	p := NewStraightPathing(w, geo.Pose{Point: geo.Point{North: 0, East: 0}}, 10, 2)

	p.Step(1000)
	assert.Equal(t, geo.Point{}, p.Pose().Point, "no destination, no motion")

	p.SetDestination(geo.Pose{Point: geo.Point{North: 0, East: 25}})
	p.Step(1000)
	assert.InDelta(t, 10, p.Pose().East, 1e-9)
	assert.InDelta(t, 90, p.Pose().Heading, 1e-9)
	assert.False(t, p.AtDestination())

	p.Step(1000)
	p.Step(1000)
	assert.InDelta(t, 25, p.Pose().East, 1e-9)
	assert.True(t, p.AtDestination())
	assert.False(t, p.RecomputeNeeded())

	p.SetDestination(geo.Pose{Point: geo.Point{North: -30, East: 25}})
	assert.True(t, p.RecomputeNeeded())
	assert.False(t, p.AtDestination())
	p.Step(1000)
	assert.InDelta(t, 0, p.Pose().North, 1e-9, "unreachable destination is not flown toward")
}

func TestProbabilisticSensorPerfect(t *testing.T) {
	w := testWorld(t)
	truth := NewTargetField(
		controllers.TrueTarget{ID: 0, Type: 1, Pose: geo.Pose{Point: geo.Point{North: 100, East: 100}}},
		controllers.TrueTarget{ID: 1, Type: 0, Pose: geo.Pose{Point: geo.Point{North: 400, East: 300}}},
		controllers.TrueTarget{ID: 2, Type: 0, Pose: geo.Pose{Point: geo.Point{North: 120, East: 90}}},
	)
	truth.Destroy(2)

	s := NewProbabilisticSensor(SensorModel{
		RangeM:                 60,
		NumTargetTypes:         2,
		DetectionProbability:   1,
		ClassificationAccuracy: 1,
		TickMs:                 100,
	}, w, truth, rand.New(rand.NewSource(1)))

	got := s.Scan(1, geo.Point{North: 110, East: 100}, 700)
	require.Len(t, got, 1, "out of range and destroyed targets are not seen")
	assert.Equal(t, 0, got[0].ID)
	assert.Equal(t, []float64{0, 1}, got[0].TypeProbabilities)
	assert.Equal(t, geo.Point{North: 100, East: 100}, got[0].Position)
	assert.Equal(t, int64(700), got[0].Timestamp)
	assert.Equal(t, 60.0, s.Range())
}

func TestProbabilisticSensorMisclassifies(t *testing.T) {
	w := testWorld(t)
	truth := NewTargetField(controllers.TrueTarget{ID: 0, Type: 2, Pose: geo.Pose{Point: geo.Point{North: 100, East: 100}}})

	s := NewProbabilisticSensor(SensorModel{
		RangeM:                 60,
		NumTargetTypes:         3,
		DetectionProbability:   1,
		ClassificationAccuracy: 0,
		TickMs:                 100,
	}, w, truth, rand.New(rand.NewSource(3)))

	for i := 0; i < 20; i++ {
		got := s.Scan(1, geo.Point{North: 100, East: 100}, int64(i))
		require.Len(t, got, 1)
		typ, _ := got[0].MostLikelyType()
		assert.NotEqual(t, 2, typ)
		sum := 0.0
		for _, p := range got[0].TypeProbabilities {
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-9)
	}
}

func TestProbabilisticSensorFalseAlarms(t *testing.T) {
	w := testWorld(t)
	s := NewProbabilisticSensor(SensorModel{
		RangeM:                 40,
		NumTargetTypes:         2,
		DetectionProbability:   1,
		ClassificationAccuracy: 0.9,
		FalseAlarmRate:         10,
		TickMs:                 100,
	}, w, NewTargetField(), rand.New(rand.NewSource(9)))

	at := geo.Point{North: 250, East: 200}
	seen := map[int]bool{}
	for i := 0; i < 20; i++ {
		for _, d := range s.Scan(1, at, int64(i)) {
			assert.GreaterOrEqual(t, d.ID, falseTrackBaseID)
			assert.False(t, seen[d.ID], "false tracks never reuse an ID")
			seen[d.ID] = true
			assert.LessOrEqual(t, at.DistanceTo(d.Position), 40.0)
			_, p := d.MostLikelyType()
			assert.LessOrEqual(t, p, 0.9)
		}
	}
	assert.NotEmpty(t, seen)

	quiet := NewProbabilisticSensor(SensorModel{RangeM: 40, NumTargetTypes: 2, TickMs: 100}, w, NewTargetField(), rand.New(rand.NewSource(9)))
	for i := 0; i < 50; i++ {
		assert.Empty(t, quiet.Scan(1, at, int64(i)))
	}
}
