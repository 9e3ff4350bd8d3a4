package controllers

import (
	"math"
	"sort"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
)

type fakeGrid struct {
	rows, cols int
	cellSize   float64
}

func (g *fakeGrid) Rows() int { return g.rows }
func (g *fakeGrid) Cols() int { return g.cols }

func (g *fakeGrid) CellAt(p geo.Point) (Cell, bool) {
	r := int(math.Floor(p.North / g.cellSize))
	c := int(math.Floor(p.East / g.cellSize))
	if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
		return Cell{}, false
	}
	return Cell{r, c}, true
}

func (g *fakeGrid) CellCenter(c Cell) geo.Point {
	return geo.Point{North: (float64(c.Row) + 0.5) * g.cellSize, East: (float64(c.Col) + 0.5) * g.cellSize}
}

func (g *fakeGrid) CellsWithin(area geo.Circle) []Cell {
	var out []Cell
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if area.Contains(g.CellCenter(Cell{r, c})) {
				out = append(out, Cell{r, c})
			}
		}
	}
	return out
}

// fakePathing flies straight at speed metres per second
type fakePathing struct {
	pose    geo.Pose
	dest    geo.Pose
	hasDest bool
	speed   float64
}

func (p *fakePathing) SetDestination(dest geo.Pose) {
	p.dest = dest
	p.hasDest = true
}

func (p *fakePathing) AtDestination() bool {
	return p.hasDest && p.pose.DistanceTo(p.dest.Point) < 1
}

func (p *fakePathing) RecomputeNeeded() bool { return false }

func (p *fakePathing) Step(dtMs int64) {
	if !p.hasDest {
		return
	}
	p.pose.Point = p.pose.MoveTowards(p.dest.Point, p.speed*float64(dtMs)/1000)
}

func (p *fakePathing) Pose() geo.Pose { return p.pose }

func pathingAt(speed float64) PathingFactory {
	return func(_ int, start geo.Pose) Pathing {
		return &fakePathing{pose: start, speed: speed}
	}
}

type fakeTruth struct {
	targets map[int]*TrueTarget
}

func newFakeTruth(targets ...TrueTarget) *fakeTruth {
	ft := &fakeTruth{targets: make(map[int]*TrueTarget)}
	for i := range targets {
		t := targets[i]
		ft.targets[t.ID] = &t
	}
	return ft
}

func (ft *fakeTruth) Targets() []TrueTarget {
	out := make([]TrueTarget, 0, len(ft.targets))
	for _, t := range ft.targets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (ft *fakeTruth) Target(id int) (TrueTarget, bool) {
	t, ok := ft.targets[id]
	if !ok {
		return TrueTarget{}, false
	}
	return *t, true
}

func (ft *fakeTruth) Destroy(id int) bool {
	t, ok := ft.targets[id]
	if !ok || t.Destroyed {
		return false
	}
	t.Destroyed = true
	return true
}

// perfectSensor sees every live target in range and classifies it exactly
type perfectSensor struct {
	truth    *fakeTruth
	rangeM   float64
	numTypes int
}

func (s *perfectSensor) Range() float64 { return s.rangeM }

func (s *perfectSensor) Scan(_ int, at geo.Point, now int64) []belief.TargetBelief {
	var out []belief.TargetBelief
	for _, t := range s.truth.Targets() {
		if t.Destroyed || at.DistanceTo(t.Pose.Point) > s.rangeM {
			continue
		}
		probs := make([]float64, s.numTypes)
		probs[t.Type] = 1
		out = append(out, belief.TargetBelief{
			ID:                t.ID,
			TypeProbabilities: probs,
			Position:          t.Pose.Point,
			Heading:           t.Pose.Heading,
			Confidence:        1,
			Timestamp:         now,
		})
	}
	return out
}
