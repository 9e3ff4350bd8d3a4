package controllers

import (
	"fmt"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/auction"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/comms"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/core"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
)

// Mode is what an agent is currently doing
type Mode int

const (
	ModeSearch Mode = iota
	ModeMonitor
	ModeAttack
)

func (m Mode) String() string {
	switch m {
	case ModeSearch:
		return "search"
	case ModeMonitor:
		return "monitor"
	case ModeAttack:
		return "attack"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Agent is one UAV: its belief, radio, auctions and flight
type Agent struct {
	ID        int
	Name      string
	HasWeapon bool

	Store    *belief.Store
	Node     *comms.Node
	Auctions *auction.Manager
	Pathing  Pathing

	scorer *availabilityScorer
	ammo   int

	mode Mode
	task auction.Key

	// pending is the one claim awaiting resolution while searching
	pending    auction.Key
	hasPending bool

	dest    geo.Point
	hasDest bool

	// onStationAt is when a monitoring agent came within sensor range, or
	// -1 while still closing
	onStationAt int64

	// visible holds the targets seen on the previous scan
	visible map[int]bool

	worldKnown   bool
	worldKnownAt int64

	believesDestroyed   bool
	believesDestroyedAt int64

	index      int
	fleetSize  int
	searchStep int
}

// Position implements core.AgentStatus
func (a *Agent) Position() geo.Point {
	return a.Pathing.Pose().Point
}

// AmmoRemaining implements core.AgentStatus
func (a *Agent) AmmoRemaining() int {
	return a.ammo
}

// Mode returns what the agent is doing
func (a *Agent) Mode() Mode {
	return a.mode
}

// Task returns the held task, if any
func (a *Agent) Task() (auction.Key, bool) {
	return a.task, a.mode != ModeSearch
}

// WorldKnownAt returns when the agent first believed the world explored
func (a *Agent) WorldKnownAt() (int64, bool) {
	return a.worldKnownAt, a.worldKnown
}

// BelievesAllDestroyedAt returns when the agent first believed every target
// destroyed
func (a *Agent) BelievesAllDestroyedAt() (int64, bool) {
	return a.believesDestroyedAt, a.believesDestroyed
}

func (a *Agent) assign(key auction.Key) {
	if key.Task == tasking.Attack {
		a.mode = ModeAttack
	} else {
		a.mode = ModeMonitor
	}
	a.task = key
	a.hasPending = false
	a.hasDest = false
	a.onStationAt = -1
}

func (a *Agent) release() {
	a.mode = ModeSearch
	a.task = auction.Key{TargetID: -1}
	a.hasDest = false
	a.onStationAt = -1
}

func (a *Agent) setPending(key auction.Key) {
	a.pending = key
	a.hasPending = true
}

func (a *Agent) busy() bool {
	return a.mode != ModeSearch || a.hasPending
}

// availabilityScorer refuses every task while its agent is busy so an agent
// never holds more than one claim
type availabilityScorer struct {
	agent *Agent
	inner *core.TaskScorer
}

func (s *availabilityScorer) Score(task tasking.TaskType, target *belief.TargetBelief) (float64, bool) {
	if s.agent.busy() {
		return 0, false
	}
	return s.inner.Score(task, target)
}
