package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/controllers"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
)

// falseTrackBaseID is the first ID handed to sensor false alarms. Real
// targets are numbered from zero and never reach it.
const falseTrackBaseID = 1 << 20

// GridWorld is the search area: Rows x Cols square cells of CellSize metres
// with the origin at the south-west corner of cell (0,0)
type GridWorld struct {
	rows, cols int
	cellSize   float64
}

// NewGridWorld creates the search grid
func NewGridWorld(rows, cols int, cellSize float64) (*GridWorld, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("grid must have at least one cell, got %dx%d", rows, cols)
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("cell size must be positive, got %.2f", cellSize)
	}
	return &GridWorld{rows: rows, cols: cols, cellSize: cellSize}, nil
}

func (g *GridWorld) Rows() int { return g.rows }
func (g *GridWorld) Cols() int { return g.cols }
func (g *GridWorld) CellSize() float64 { return g.cellSize }
func (g *GridWorld) HeightM() float64 { return float64(g.rows) * g.cellSize }
func (g *GridWorld) WidthM() float64 { return float64(g.cols) * g.cellSize }

// Contains reports whether p lies inside the search area
func (g *GridWorld) Contains(p geo.Point) bool {
	return p.North >= 0 && p.North < g.HeightM() && p.East >= 0 && p.East < g.WidthM()
}

// CellAt returns the cell holding p
func (g *GridWorld) CellAt(p geo.Point) (controllers.Cell, bool) {
	if !g.Contains(p) {
		return controllers.Cell{}, false
	}
	return controllers.Cell{
		Row: int(math.Floor(p.North / g.cellSize)),
		Col: int(math.Floor(p.East / g.cellSize)),
	}, true
}

// CellCenter returns the centre of c
func (g *GridWorld) CellCenter(c controllers.Cell) geo.Point {
	return geo.Point{
		North: (float64(c.Row) + 0.5) * g.cellSize,
		East:  (float64(c.Col) + 0.5) * g.cellSize,
	}
}

// CellsWithin returns every cell whose centre lies inside area, row-major
func (g *GridWorld) CellsWithin(area geo.Circle) []controllers.Cell {
	r0 := g.clampRow(int(math.Floor((area.Center.North - area.Radius) / g.cellSize)))
	r1 := g.clampRow(int(math.Floor((area.Center.North + area.Radius) / g.cellSize)))
	c0 := g.clampCol(int(math.Floor((area.Center.East - area.Radius) / g.cellSize)))
	c1 := g.clampCol(int(math.Floor((area.Center.East + area.Radius) / g.cellSize)))

	var out []controllers.Cell
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			cell := controllers.Cell{Row: r, Col: c}
			if area.Contains(g.CellCenter(cell)) {
				out = append(out, cell)
			}
		}
	}
	return out
}

func (g *GridWorld) clampRow(r int) int { return clampInt(r, 0, g.rows-1) }
func (g *GridWorld) clampCol(c int) int { return clampInt(c, 0, g.cols-1) }

// TargetField is the ground truth: where the targets really are and which
// of them have been destroyed
type TargetField struct {
	targets map[int]*controllers.TrueTarget
}

// NewTargetField holds the given targets
func NewTargetField(targets ...controllers.TrueTarget) *TargetField {
	tf := &TargetField{targets: make(map[int]*controllers.TrueTarget, len(targets))}
	for i := range targets {
		t := targets[i]
		tf.targets[t.ID] = &t
	}
	return tf
}

// PlaceTargets scatters count stationary targets uniformly over the world.
// Types are drawn from weights, or uniformly over numTypes when weights is
// empty.
func PlaceTargets(world *GridWorld, count, numTypes int, weights []float64, rng *rand.Rand) (*TargetField, error) {
	if count < 0 {
		return nil, fmt.Errorf("target count must not be negative")
	}
	if numTypes <= 0 {
		return nil, fmt.Errorf("number of target types must be positive")
	}
	if len(weights) > 0 && len(weights) != numTypes {
		return nil, fmt.Errorf("expected %d type weights, got %d", numTypes, len(weights))
	}

	targets := make([]controllers.TrueTarget, 0, count)
	for id := 0; id < count; id++ {
		targets = append(targets, controllers.TrueTarget{
			ID:   id,
			Type: drawType(numTypes, weights, rng),
			Pose: geo.Pose{
				Point: geo.Point{
					North: rng.Float64() * world.HeightM(),
					East:  rng.Float64() * world.WidthM(),
				},
				Heading: rng.Float64() * 360,
			},
		})
	}
	return NewTargetField(targets...), nil
}

func drawType(numTypes int, weights []float64, rng *rand.Rand) int {
	if len(weights) == 0 {
		return rng.Intn(numTypes)
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	x := rng.Float64() * total
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return numTypes - 1
}

// Targets returns every target ordered by ID
func (tf *TargetField) Targets() []controllers.TrueTarget {
	out := make([]controllers.TrueTarget, 0, len(tf.targets))
	for _, t := range tf.targets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Target returns one target
func (tf *TargetField) Target(id int) (controllers.TrueTarget, bool) {
	t, ok := tf.targets[id]
	if !ok {
		return controllers.TrueTarget{}, false
	}
	return *t, true
}

// Destroy marks a live target destroyed
func (tf *TargetField) Destroy(id int) bool {
	t, ok := tf.targets[id]
	if !ok || t.Destroyed {
		return false
	}
	t.Destroyed = true
	return true
}

// StraightPathing flies directly at the destination at constant speed. A
// destination outside the world cannot be reached and asks for a new one.
type StraightPathing struct {
	world         *GridWorld
	pose          geo.Pose
	dest          geo.Pose
	hasDest       bool
	unreachable   bool
	speedMps      float64
	arrivalRadius float64
}

// NewStraightPathing creates pathing for one agent
func NewStraightPathing(world *GridWorld, start geo.Pose, speedMps, arrivalRadius float64) *StraightPathing {
	return &StraightPathing{world: world, pose: start, speedMps: speedMps, arrivalRadius: arrivalRadius}
}

// StraightPathingFactory adapts StraightPathing for the controller
func StraightPathingFactory(world *GridWorld, speedMps, arrivalRadius float64) controllers.PathingFactory {
	return func(_ int, start geo.Pose) controllers.Pathing {
		return NewStraightPathing(world, start, speedMps, arrivalRadius)
	}
}

func (p *StraightPathing) SetDestination(dest geo.Pose) {
	p.dest = dest
	p.hasDest = true
	p.unreachable = !p.world.Contains(dest.Point)
}

func (p *StraightPathing) AtDestination() bool {
	return p.hasDest && !p.unreachable && p.pose.DistanceTo(p.dest.Point) <= p.arrivalRadius
}

func (p *StraightPathing) RecomputeNeeded() bool { return p.unreachable }

func (p *StraightPathing) Step(dtMs int64) {
	if !p.hasDest || p.unreachable {
		return
	}
	if p.pose.DistanceTo(p.dest.Point) > 0 {
		p.pose.Heading = p.pose.HeadingTo(p.dest.Point)
	}
	p.pose.Point = p.pose.MoveTowards(p.dest.Point, p.speedMps*float64(dtMs)/1000)
}

func (p *StraightPathing) Pose() geo.Pose { return p.pose }

// SensorModel sets the detection statistics of ProbabilisticSensor
type SensorModel struct {
	RangeM                 float64
	NumTargetTypes         int
	DetectionProbability   float64
	ClassificationAccuracy float64

	// FalseAlarmRate is the expected number of false tracks per agent per
	// second of simulated time
	FalseAlarmRate float64
	TickMs         int64
}

// ProbabilisticSensor detects live targets in range with a fixed
// probability, reports the true type with ClassificationAccuracy and now
// and then invents a track where nothing is. All draws come from the
// injected rng.
type ProbabilisticSensor struct {
	model     SensorModel
	world     *GridWorld
	truth     *TargetField
	rng       *rand.Rand
	nextFalse int
}

// NewProbabilisticSensor creates the shared sensor
func NewProbabilisticSensor(model SensorModel, world *GridWorld, truth *TargetField, rng *rand.Rand) *ProbabilisticSensor {
	if rng == nil {
		panic("simulation: nil rng")
	}
	return &ProbabilisticSensor{model: model, world: world, truth: truth, rng: rng, nextFalse: falseTrackBaseID}
}

func (s *ProbabilisticSensor) Range() float64 { return s.model.RangeM }

// Scan returns this tick's detections around at
func (s *ProbabilisticSensor) Scan(_ int, at geo.Point, now int64) []belief.TargetBelief {
	var out []belief.TargetBelief
	for _, t := range s.truth.Targets() {
		if t.Destroyed || at.DistanceTo(t.Pose.Point) > s.model.RangeM {
			continue
		}
		if s.rng.Float64() >= s.model.DetectionProbability {
			continue
		}
		reported := t.Type
		if s.model.NumTargetTypes > 1 && s.rng.Float64() >= s.model.ClassificationAccuracy {
			reported = (t.Type + 1 + s.rng.Intn(s.model.NumTargetTypes-1)) % s.model.NumTargetTypes
		}
		out = append(out, belief.TargetBelief{
			ID:                t.ID,
			TypeProbabilities: s.typeVector(reported, s.model.ClassificationAccuracy),
			Position:          t.Pose.Point,
			Heading:           t.Pose.Heading,
			Confidence:        s.model.DetectionProbability,
			Timestamp:         now,
		})
	}

	if s.falseAlarm() {
		if ghost, ok := s.ghost(at, now); ok {
			out = append(out, ghost)
		}
	}
	return out
}

func (s *ProbabilisticSensor) falseAlarm() bool {
	p := s.model.FalseAlarmRate * float64(s.model.TickMs) / 1000
	return p > 0 && s.rng.Float64() < p
}

// ghost places a false track somewhere in the footprint with a confidence
// between chance and the sensor's real classification accuracy
func (s *ProbabilisticSensor) ghost(at geo.Point, now int64) (belief.TargetBelief, bool) {
	r := s.model.RangeM * math.Sqrt(s.rng.Float64())
	theta := s.rng.Float64() * 2 * math.Pi
	pos := geo.Point{North: at.North + r*math.Cos(theta), East: at.East + r*math.Sin(theta)}
	if !s.world.Contains(pos) {
		return belief.TargetBelief{}, false
	}

	n := s.model.NumTargetTypes
	chance := 1 / float64(n)
	acc := chance + s.rng.Float64()*(s.model.ClassificationAccuracy-chance)

	id := s.nextFalse
	s.nextFalse++
	return belief.TargetBelief{
		ID:                id,
		TypeProbabilities: s.typeVector(s.rng.Intn(n), acc),
		Position:          pos,
		Heading:           s.rng.Float64() * 360,
		Confidence:        acc,
		Timestamp:         now,
	}, true
}

// typeVector puts p on typ and spreads the rest evenly
func (s *ProbabilisticSensor) typeVector(typ int, p float64) []float64 {
	n := s.model.NumTargetTypes
	v := make([]float64, n)
	if n == 1 {
		v[0] = 1
		return v
	}
	rest := (1 - p) / float64(n-1)
	for i := range v {
		v[i] = rest
	}
	v[typ] = p
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
