package controllers

import (
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
)

// Sensor reports what an agent can see from a location. Each returned belief
// is a single-scan estimate; the controller only fuses it.
type Sensor interface {
	Scan(agentID int, at geo.Point, now int64) []belief.TargetBelief
	Range() float64
}

// Pathing flies one agent. The controller sets destinations and queries
// progress; kinematics stay behind this interface.
type Pathing interface {
	SetDestination(dest geo.Pose)
	AtDestination() bool

	// RecomputeNeeded reports that the current destination can no longer be
	// reached on the planned path and a new one should be chosen
	RecomputeNeeded() bool

	Step(dtMs int64)
	Pose() geo.Pose
}

// PathingFactory creates the pathing for an agent starting at start
type PathingFactory func(agentID int, start geo.Pose) Pathing

// Cell addresses one grid cell
type Cell struct {
	Row int
	Col int
}

// Grid converts between world positions and belief cells
type Grid interface {
	Rows() int
	Cols() int
	CellAt(p geo.Point) (Cell, bool)
	CellCenter(c Cell) geo.Point
	CellsWithin(area geo.Circle) []Cell
}

// TrueTarget is a target as it really is
type TrueTarget struct {
	ID        int
	Type      int
	Pose      geo.Pose
	Destroyed bool
}

// GroundTruth holds the real targets. Only sensing, engagement and mirroring
// consult it; agents never read it directly.
type GroundTruth interface {
	Targets() []TrueTarget
	Target(id int) (TrueTarget, bool)
	Destroy(id int) bool
}
