package controllers

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
)

// SwarmController places the fleet at launch and picks search destinations
// for agents that hold no task
type SwarmController struct {
	grid       Grid
	rng        *rand.Rand
	formations map[string]Formation
	patterns   map[string]SearchPattern
	formation  Formation
	pattern    SearchPattern
}

// Formation places agent index of count at launch
type Formation interface {
	LaunchPose(index, count int, grid Grid, rng *rand.Rand) geo.Pose
}

// SearchPattern picks the next cell an idle agent should fly to
type SearchPattern interface {
	Next(agent *Agent, grid Grid, rng *rand.Rand) Cell
}

// Common formations
type LineFormation struct{}

type CornerFormation struct {
	Spacing float64
}

type RandomFormation struct{}

// Search patterns
type RandomSearch struct{}

type LawnmowerSearch struct {
	// RowStride is how many rows one pass covers
	RowStride int
}

// UncertaintySearch picks among the most uncertain third of the agent's
// believed cells
type UncertaintySearch struct{}

// NewSwarmController creates a controller using the named launch formation
// and search pattern. sensorRange sizes the lawnmower lanes.
func NewSwarmController(grid Grid, rng *rand.Rand, formation, pattern string, sensorRange float64) (*SwarmController, error) {
	if rng == nil {
		panic("controllers: nil random source")
	}
	sc := &SwarmController{
		grid:       grid,
		rng:        rng,
		formations: make(map[string]Formation),
		patterns:   make(map[string]SearchPattern),
	}

	cellSize := cellSizeOf(grid)
	stride := 1
	if cellSize > 0 {
		stride = int(math.Max(1, math.Floor(2*sensorRange/cellSize)))
	}

	// Register default formations and patterns
	sc.formations["line"] = &LineFormation{}
	sc.formations["corner"] = &CornerFormation{Spacing: cellSize}
	sc.formations["random"] = &RandomFormation{}
	sc.patterns["random"] = &RandomSearch{}
	sc.patterns["lawnmower"] = &LawnmowerSearch{RowStride: stride}
	sc.patterns["uncertain"] = &UncertaintySearch{}

	var ok bool
	if sc.formation, ok = sc.formations[formation]; !ok {
		return nil, fmt.Errorf("unknown launch pattern %q", formation)
	}
	if sc.pattern, ok = sc.patterns[pattern]; !ok {
		return nil, fmt.Errorf("unknown search pattern %q", pattern)
	}
	return sc, nil
}

// LaunchPoses returns the start pose of each of count agents
func (sc *SwarmController) LaunchPoses(count int) []geo.Pose {
	poses := make([]geo.Pose, count)
	for i := range poses {
		poses[i] = sc.formation.LaunchPose(i, count, sc.grid, sc.rng)
	}
	return poses
}

// NextSearchDestination picks where an idle agent searches next
func (sc *SwarmController) NextSearchDestination(agent *Agent) geo.Pose {
	cell := sc.pattern.Next(agent, sc.grid, sc.rng)
	dest := sc.grid.CellCenter(cell)
	from := agent.Position()
	return geo.Pose{Point: dest, Heading: from.HeadingTo(dest)}
}

// cellSizeOf measures the grid pitch from two adjacent cell centres
func cellSizeOf(grid Grid) float64 {
	switch {
	case grid.Cols() > 1:
		return grid.CellCenter(Cell{0, 0}).DistanceTo(grid.CellCenter(Cell{0, 1}))
	case grid.Rows() > 1:
		return grid.CellCenter(Cell{0, 0}).DistanceTo(grid.CellCenter(Cell{1, 0}))
	default:
		return 0
	}
}

// Formation implementations

// LaunchPose spreads the fleet along the southern edge, heading north
func (f *LineFormation) LaunchPose(index, count int, grid Grid, _ *rand.Rand) geo.Pose {
	col := 0
	if count > 1 {
		col = index * (grid.Cols() - 1) / (count - 1)
	}
	return geo.Pose{Point: grid.CellCenter(Cell{0, col}), Heading: 0}
}

// LaunchPose packs the fleet into a square block at the south-west corner,
// heading north-east
func (f *CornerFormation) LaunchPose(index, count int, grid Grid, _ *rand.Rand) geo.Pose {
	side := int(math.Ceil(math.Sqrt(float64(count))))
	origin := grid.CellCenter(Cell{0, 0})
	return geo.Pose{
		Point: geo.Point{
			North: origin.North + float64(index/side)*f.Spacing,
			East:  origin.East + float64(index%side)*f.Spacing,
		},
		Heading: 45,
	}
}

// LaunchPose drops each agent on a random cell with a random heading
func (f *RandomFormation) LaunchPose(_, _ int, grid Grid, rng *rand.Rand) geo.Pose {
	cell := Cell{Row: rng.Intn(grid.Rows()), Col: rng.Intn(grid.Cols())}
	return geo.Pose{Point: grid.CellCenter(cell), Heading: rng.Float64() * 360}
}

// Search pattern implementations

func (p *RandomSearch) Next(_ *Agent, grid Grid, rng *rand.Rand) Cell {
	return Cell{Row: rng.Intn(grid.Rows()), Col: rng.Intn(grid.Cols())}
}

// Next walks a serpentine sweep. Each agent starts at its own offset into
// the sweep so the fleet fans out.
func (p *LawnmowerSearch) Next(agent *Agent, grid Grid, _ *rand.Rand) Cell {
	waypoints := p.waypoints(grid)
	start := 0
	if agent.fleetSize > 0 {
		start = agent.index * len(waypoints) / agent.fleetSize
	}
	wp := waypoints[(start+agent.searchStep)%len(waypoints)]
	agent.searchStep++
	return wp
}

func (p *LawnmowerSearch) waypoints(grid Grid) []Cell {
	stride := p.RowStride
	if stride < 1 {
		stride = 1
	}
	last := grid.Cols() - 1
	var out []Cell
	for row, pass := stride/2, 0; row < grid.Rows(); row, pass = row+stride, pass+1 {
		if pass%2 == 0 {
			out = append(out, Cell{row, 0}, Cell{row, last})
		} else {
			out = append(out, Cell{row, last}, Cell{row, 0})
		}
	}
	if len(out) == 0 {
		out = append(out, Cell{0, 0}, Cell{0, last})
	}
	return out
}

// Next picks a random cell from the most uncertain third of the agent's
// belief. While the whole grid is equally uncertain any cell will do.
func (p *UncertaintySearch) Next(agent *Agent, grid Grid, rng *rand.Rand) Cell {
	world := agent.Store.World()
	type scored struct {
		cell Cell
		u    float64
	}
	cells := make([]scored, 0, world.Rows*world.Cols)
	for r := 0; r < world.Rows; r++ {
		for c := 0; c < world.Cols; c++ {
			cells = append(cells, scored{Cell{r, c}, world.Cell(r, c).Uncertainty()})
		}
	}
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].u > cells[j].u })

	third := len(cells) / 3
	if third == 0 || cells[0].u-cells[third].u < 1e-3 {
		return cells[rng.Intn(len(cells))].cell
	}
	return cells[rng.Intn(third)].cell
}
