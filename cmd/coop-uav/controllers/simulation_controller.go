package controllers

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/auction"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/comms"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/core"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/reporting"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/models"
)

// Termination reasons
const (
	ReasonAllDestroyed = "all targets destroyed"
	ReasonOutOfAmmo    = "fleet out of ammunition"
	ReasonMaxTicks     = "max ticks reached"
)

// SimulationController advances the whole swarm one tick at a time. Agents
// are processed in ascending ID order so a seeded run always replays the
// same way.
type SimulationController struct {
	config    SimulationConfig
	agents    []*Agent
	byID      map[int]*Agent
	network   *comms.Network
	grid      Grid
	sensor    Sensor
	truth     GroundTruth
	swarm     *SwarmController
	allocator *TaskAllocator
	engage    *core.EngagementCalculator
	buffer    *core.UpdateBuffer
	simLogger *reporting.SimulationLogger
	log       logger.Logger

	tick      int64
	nowMs     int64
	finished  bool
	reason    string
	startTime time.Time
	mu        sync.RWMutex

	// Metrics
	totalEngagements      int
	successfulEngagements int
	detections            int

	// Milestones in simulated ms, zero until reached. Ticks start at 1 so a
	// reached milestone is never zero.
	foundAt           map[int]int64
	destroyedAt       map[int]int64
	allFoundMs        int64
	allDestroyedMs    int64
	outOfAmmoMs       int64
	fleetWorldKnownMs int64
}

// SimulationConfig holds the settings the controller needs
type SimulationConfig struct {
	TickMs   int64
	MaxTicks int

	Belief     belief.Config
	Comms      comms.Config
	Engagement core.EngagementConfig

	ScoreDistanceRefM  float64
	MonitorDwellMs     int64
	DetectionThreshold float64

	LaunchPattern string
	SearchPattern string

	// RequireExploration holds the run open after the strike ends until
	// every target has been found and half the fleet believes the world known
	RequireExploration bool
}

// AgentSpec describes one UAV to create
type AgentSpec struct {
	ID        int
	Name      string
	HasWeapon bool
	Ammo      int

	// Start overrides the launch formation when set
	Start *geo.Pose
}

// Collaborators are the world models the controller drives agents through
type Collaborators struct {
	Grid       Grid
	Sensor     Sensor
	Truth      GroundTruth
	NewPathing PathingFactory
}

// NewSimulationController builds the fleet. buffer may be nil when nothing
// mirrors the run.
func NewSimulationController(cfg SimulationConfig, specs []AgentSpec, collab Collaborators, rng *rand.Rand, simLogger *reporting.SimulationLogger, buffer *core.UpdateBuffer) (*SimulationController, error) {
	if rng == nil {
		panic("controllers: nil random source")
	}
	if collab.Grid == nil || collab.Sensor == nil || collab.Truth == nil || collab.NewPathing == nil {
		return nil, fmt.Errorf("missing world collaborator")
	}
	if simLogger == nil {
		return nil, fmt.Errorf("simulation logger is required")
	}
	if cfg.TickMs <= 0 {
		return nil, fmt.Errorf("tick must be positive, got %dms", cfg.TickMs)
	}
	if cfg.MaxTicks <= 0 {
		return nil, fmt.Errorf("max ticks must be positive, got %d", cfg.MaxTicks)
	}
	if err := cfg.Belief.Validate(); err != nil {
		return nil, fmt.Errorf("belief config: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one agent is required")
	}

	swarm, err := NewSwarmController(collab.Grid, rng, cfg.LaunchPattern, cfg.SearchPattern, collab.Sensor.Range())
	if err != nil {
		return nil, err
	}

	sc := &SimulationController{
		config:    cfg,
		byID:      make(map[int]*Agent, len(specs)),
		network:   comms.NewNetwork(),
		grid:      collab.Grid,
		sensor:    collab.Sensor,
		truth:     collab.Truth,
		swarm:     swarm,
		allocator: NewTaskAllocator(simLogger),
		engage:    core.NewEngagementCalculator(cfg.Engagement, rng),
		buffer:    buffer,
		simLogger: simLogger,
		log:       logger.WithPrefix("controller"),
		startTime: time.Now(),

		foundAt:     make(map[int]int64),
		destroyedAt: make(map[int]int64),
	}

	sorted := append([]AgentSpec(nil), specs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	launch := swarm.LaunchPoses(len(sorted))

	for i, spec := range sorted {
		if _, dup := sc.byID[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %d", spec.ID)
		}
		if spec.ID == comms.BroadcastID {
			return nil, fmt.Errorf("agent id %d is reserved for broadcast", spec.ID)
		}
		start := launch[i]
		if spec.Start != nil {
			start = *spec.Start
		}
		sc.addAgent(spec, start, i, len(sorted), collab.NewPathing, rng)
	}

	sc.log.Infof("Created %d agents over a %dx%d grid", len(sc.agents), collab.Grid.Rows(), collab.Grid.Cols())
	return sc, nil
}

func (sc *SimulationController) addAgent(spec AgentSpec, start geo.Pose, index, fleetSize int, newPathing PathingFactory, rng *rand.Rand) {
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("UAV-%02d", spec.ID)
	}
	a := &Agent{
		ID:          spec.ID,
		Name:        name,
		HasWeapon:   spec.HasWeapon,
		Store:       belief.NewStore(sc.config.Belief, spec.ID, sc.grid.Rows(), sc.grid.Cols()),
		Node:        comms.NewNode(spec.ID, sc.config.Comms, rng, sc.network),
		Pathing:     newPathing(spec.ID, start),
		onStationAt: -1,
		visible:     make(map[int]bool),
		index:       index,
		fleetSize:   fleetSize,
	}
	a.release()
	if spec.HasWeapon {
		a.ammo = spec.Ammo
	}

	var ec *core.EngagementCalculator
	if spec.HasWeapon {
		ec = sc.engage
	}
	a.scorer = &availabilityScorer{agent: a, inner: core.NewTaskScorer(a, ec, sc.config.ScoreDistanceRefM)}
	a.Auctions = auction.NewManager(spec.ID, a.Store, a.Node, a.scorer)

	a.Node.SetLocation(start.Point)
	sc.network.Add(a.Node)
	sc.agents = append(sc.agents, a)
	sc.byID[a.ID] = a
}

// Agents returns the fleet in ID order
func (sc *SimulationController) Agents() []*Agent {
	return sc.agents
}

// Agent returns one agent by ID
func (sc *SimulationController) Agent(id int) (*Agent, bool) {
	a, ok := sc.byID[id]
	return a, ok
}

// Tick returns the number of completed ticks
func (sc *SimulationController) Tick() int64 {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.tick
}

// NowMs returns the simulated time of the last completed tick
func (sc *SimulationController) NowMs() int64 {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.nowMs
}

// Finished reports whether the run has ended and why
func (sc *SimulationController) Finished() (bool, string) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.finished, sc.reason
}

// StepSimulation advances every agent by one tick. It returns true once the
// run has ended; further calls do nothing.
func (sc *SimulationController) StepSimulation() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.finished {
		return true
	}

	sc.tick++
	sc.nowMs = sc.tick * sc.config.TickMs
	sc.simLogger.Advance(sc.tick, sc.nowMs)

	for _, a := range sc.agents {
		sc.stepAgent(a, sc.nowMs)
	}

	sc.mirror()
	sc.checkTerminationConditions()

	if sc.tick%sc.ticksPerSecond() == 0 || sc.finished {
		sc.updateMetrics()
	}
	return sc.finished
}

func (sc *SimulationController) stepAgent(a *Agent, now int64) {
	// Sense
	sc.sense(a, now)

	// Comms: read what arrived, then relay and send
	msgs := a.Node.Incoming()
	a.Node.Step(a.Position())

	// Think
	sc.handleMessages(a, msgs, now)
	sc.applyTransitions(a, a.Auctions.Step(now), now)
	sc.allocator.Step(a, now)

	// Act
	switch a.mode {
	case ModeSearch:
		sc.search(a)
	case ModeMonitor:
		sc.monitor(a, now)
	case ModeAttack:
		sc.attack(a, now)
	}
	a.Pathing.Step(sc.config.TickMs)

	// Share
	a.Store.Decay(sc.config.TickMs)
	if a.Store.BroadcastDue(now) {
		a.Node.Transmit(comms.BeliefSnapshot{Belief: a.Store.Snapshot()}, comms.BroadcastID, now)
	}
	if at, known := a.Store.CheckWorldKnown(now); known && !a.worldKnown {
		a.worldKnown = true
		a.worldKnownAt = at
		sc.simLogger.LogWorldKnown(a.ID, a.Store.World().Uncertainty())
	}
	if !a.believesDestroyed && a.Store.World().BelievesAllTargetsDestroyed(len(sc.truth.Targets())) {
		a.believesDestroyed = true
		a.believesDestroyedAt = now
	}
}

// sense scans from the agent's position and fuses what it sees into its
// belief. Cells under the footprint are updated even when empty.
func (sc *SimulationController) sense(a *Agent, now int64) {
	pos := a.Position()
	footprint := geo.Circle{Center: pos, Radius: sc.sensor.Range()}
	numTypes := sc.config.Belief.NumTargetTypes

	type cellReading struct {
		probs   []float64
		heading float64
	}
	readings := make(map[Cell]*cellReading)
	seen := make(map[int]bool)

	for _, d := range sc.sensor.Scan(a.ID, pos, now) {
		typ, p := d.MostLikelyType()
		if p < sc.config.DetectionThreshold {
			continue
		}
		seen[d.ID] = true
		if _, ok := sc.truth.Target(d.ID); ok {
			if _, found := sc.foundAt[d.ID]; !found {
				sc.foundAt[d.ID] = now
			}
		}

		first := a.Store.ObserveTarget(belief.Observation{
			TargetID:   d.ID,
			TypeIndex:  typ,
			TypeProb:   p,
			Position:   d.Position,
			Heading:    d.Heading,
			Confidence: d.Confidence,
		}, now)
		if first || !a.visible[d.ID] {
			sc.detections++
			sc.simLogger.LogDetection(a.ID, d.ID, pos.DistanceTo(d.Position), first)
		}
		if first {
			sc.announce(a, tasking.Monitor, d.ID, now)
		}

		cell, ok := sc.grid.CellAt(d.Position)
		if !ok {
			continue
		}
		r := readings[cell]
		if r == nil {
			r = &cellReading{probs: make([]float64, numTypes)}
			readings[cell] = r
		}
		for t := 0; t < numTypes && t < len(d.TypeProbabilities); t++ {
			if d.TypeProbabilities[t] > r.probs[t] {
				r.probs[t] = d.TypeProbabilities[t]
			}
		}
		r.heading = d.Heading
	}
	a.visible = seen

	for _, cell := range sc.grid.CellsWithin(footprint) {
		r := readings[cell]
		for t := 0; t < numTypes; t++ {
			prob, heading := 0.0, 0.0
			if r != nil {
				prob, heading = r.probs[t], r.heading
			}
			a.Store.ObserveCell(cell.Row, cell.Col, t, prob, heading, now)
		}
	}
}

// announce opens an auction from a and, when a claimed it itself, records
// the claim as pending
func (sc *SimulationController) announce(a *Agent, task tasking.TaskType, targetID int, now int64) {
	if !a.Auctions.StartAuction(task, targetID, now) {
		return
	}
	sc.simLogger.LogAnnounce(a.ID, task.String(), targetID)
	key := auction.Key{Task: task, TargetID: targetID}
	if au, ok := a.Auctions.Auction(key); ok && au.Phase == auction.Bidding {
		a.setPending(key)
	}
}

func (sc *SimulationController) handleMessages(a *Agent, msgs []*comms.Message, now int64) {
	for _, msg := range msgs {
		if msg.Origin == a.ID {
			continue
		}
		switch p := msg.Payload.(type) {
		case comms.BeliefSnapshot:
			stats := a.Store.Merge(p.Belief)
			if stats.Changed() {
				sc.simLogger.LogMerge(a.ID, msg.Origin, msg.Hops, stats.CellsUpdated, stats.TargetsUpdated, stats.TargetsAdded)
			}
		case comms.AuctionAnnounce:
			if a.Auctions.OnAnnounce(msg, now) {
				key := auction.Key{Task: p.Task, TargetID: p.Target.ID}
				a.setPending(key)
				target, _ := a.Store.Target(key.TargetID)
				score, _ := a.scorer.inner.Score(key.Task, target)
				sc.simLogger.LogBid(a.ID, msg.Origin, p.Task.String(), key.TargetID, score)
			}
		case comms.Bid:
			a.Auctions.OnBid(msg)
		}
	}
}

func (sc *SimulationController) applyTransitions(a *Agent, transitions []auction.Transition, now int64) {
	for _, t := range transitions {
		sc.simLogger.LogAuction(a.ID, t.Key.Task.String(), t.Key.TargetID, t.From.String(), t.To.String())

		switch t.To {
		case auction.Won:
			if a.mode == ModeSearch && (!a.hasPending || a.pending == t.Key) {
				sc.allocator.Adopt(a, t.Key, now)
			}
		case auction.Lost, auction.Completed:
			if a.hasPending && a.pending == t.Key {
				a.hasPending = false
			}
		}
	}
}

func (sc *SimulationController) search(a *Agent) {
	if a.hasDest && !a.Pathing.AtDestination() && !a.Pathing.RecomputeNeeded() {
		return
	}
	dest := sc.swarm.NextSearchDestination(a)
	sc.flyTo(a, dest.Point, true)
}

func (sc *SimulationController) monitor(a *Agent, now int64) {
	target, ok := a.Store.Target(a.task.TargetID)
	if !ok {
		sc.allocator.Release(a, "target unknown")
		return
	}
	sc.flyTo(a, target.Position, false)

	if a.Position().DistanceTo(target.Position) > sc.sensor.Range() {
		return
	}
	if sc.confirmDestroyed(a, target) {
		return
	}
	if a.onStationAt < 0 {
		a.onStationAt = now
	}
	if now-a.onStationAt < sc.config.MonitorDwellMs {
		return
	}

	targetID := a.task.TargetID
	if t, ok := a.Auctions.Complete(tasking.Monitor, targetID, false, now); ok {
		sc.simLogger.LogAuction(a.ID, t.Key.Task.String(), targetID, t.From.String(), t.To.String())
	}
	sc.allocator.Release(a, "monitor complete")

	if target.Status.Destroyed || target.Status.Attack.State == tasking.Complete {
		return
	}
	key := auction.Key{Task: tasking.Attack, TargetID: targetID}
	if au, ok := a.Auctions.Auction(key); ok && au.Active() {
		return
	}
	sc.announce(a, tasking.Attack, targetID, now)
}

func (sc *SimulationController) attack(a *Agent, now int64) {
	target, ok := a.Store.Target(a.task.TargetID)
	if !ok {
		sc.allocator.Release(a, "target unknown")
		return
	}
	if a.ammo <= 0 {
		sc.allocator.Release(a, "out of ammunition")
		return
	}
	sc.flyTo(a, target.Position, false)

	pos := a.Position()
	if pos.DistanceTo(target.Position) <= sc.sensor.Range() && sc.confirmDestroyed(a, target) {
		return
	}

	truth, ok := sc.truth.Target(target.ID)
	if !ok || truth.Destroyed {
		return
	}
	if !sc.engage.CanEngage(a.ammo, pos.DistanceTo(truth.Pose.Point)) {
		return
	}

	result := sc.engage.CalculateEngagement(a.ID, pos, truth.ID, truth.Type, truth.Pose.Point, now)
	a.ammo--
	sc.totalEngagements++
	sc.simLogger.LogEngagement(a.ID, truth.ID, result.Distance, result.Probability, result.Success)

	if result.Success {
		sc.successfulEngagements++
		sc.truth.Destroy(truth.ID)
		sc.destroyedAt[truth.ID] = now
		sc.simLogger.LogDestruction(truth.ID, a.ID)
		if t, ok := a.Auctions.Complete(tasking.Attack, truth.ID, true, now); ok {
			sc.simLogger.LogAuction(a.ID, t.Key.Task.String(), truth.ID, t.From.String(), t.To.String())
		}
		sc.allocator.Release(a, "target destroyed")
		return
	}
	if a.ammo == 0 {
		sc.allocator.Release(a, "out of ammunition")
	}
}

// confirmDestroyed checks a target the agent can see. A destroyed target, or
// a false track with nothing behind it, is marked destroyed in the agent's
// belief and the agent goes back to searching.
func (sc *SimulationController) confirmDestroyed(a *Agent, target *belief.TargetBelief) bool {
	truth, ok := sc.truth.Target(target.ID)
	if ok && !truth.Destroyed {
		return false
	}
	target.Status.Destroyed = true
	if ok {
		sc.allocator.Release(a, "target already destroyed")
	} else {
		sc.allocator.Release(a, "no target at reported position")
	}
	return true
}

// flyTo steers a toward dest. Unless force is set the current destination is
// kept while it lies within a metre of dest.
func (sc *SimulationController) flyTo(a *Agent, dest geo.Point, force bool) {
	if !force && a.hasDest && a.dest.DistanceTo(dest) < 1 {
		return
	}
	from := a.Position()
	a.Pathing.SetDestination(geo.Pose{Point: dest, Heading: from.HeadingTo(dest)})
	a.dest = dest
	a.hasDest = true
}

func (sc *SimulationController) mirror() {
	if sc.buffer == nil {
		return
	}
	for _, a := range sc.agents {
		pose := a.Pathing.Pose()
		state := models.AgentState{
			ID:         a.ID,
			North:      pose.North,
			East:       pose.East,
			Heading:    pose.Heading,
			Mode:       a.mode.String(),
			TargetID:   -1,
			QueueDepth: a.Node.InboundLen(),
			Ammo:       a.ammo,
		}
		if key, ok := a.Task(); ok {
			state.Task = key.Task.String()
			state.TargetID = key.TargetID
		}
		sc.buffer.QueueAgentUpdate(state)
	}
	for _, t := range sc.truth.Targets() {
		sc.buffer.QueueTargetUpdate(models.TargetState{
			ID:        t.ID,
			Type:      t.Type,
			North:     t.Pose.North,
			East:      t.Pose.East,
			Destroyed: t.Destroyed,
		})
	}
	sc.buffer.Flush(sc.tick, sc.nowMs, sc.commsStats())
}

// checkTerminationConditions ends the run once every target is destroyed or
// the armed agents have spent all their ammunition. With RequireExploration
// set, either of those must also be accompanied by every target found and
// the fleet believing the world known.
func (sc *SimulationController) checkTerminationConditions() {
	sc.updateMilestones()

	reason := ""
	switch {
	case sc.allDestroyedMs > 0:
		reason = ReasonAllDestroyed
	case sc.outOfAmmoMs > 0:
		reason = ReasonOutOfAmmo
	}
	if reason != "" && sc.config.RequireExploration && (sc.allFoundMs == 0 || sc.fleetWorldKnownMs == 0) {
		reason = ""
	}

	switch {
	case reason != "":
		sc.reason = reason
	case sc.tick >= int64(sc.config.MaxTicks):
		sc.reason = ReasonMaxTicks
	default:
		return
	}
	sc.finished = true
	sc.simLogger.LogTermination(sc.reason)
}

// updateMilestones latches the first time each fleet-wide condition holds
func (sc *SimulationController) updateMilestones() {
	targets := sc.truth.Targets()
	if len(targets) > 0 {
		found, destroyed := 0, 0
		for _, t := range targets {
			if _, ok := sc.foundAt[t.ID]; ok {
				found++
			}
			if t.Destroyed {
				destroyed++
			}
		}
		if sc.allFoundMs == 0 && found == len(targets) {
			sc.allFoundMs = sc.nowMs
			sc.simLogger.LogMilestone("all targets found")
		}
		if sc.allDestroyedMs == 0 && destroyed == len(targets) {
			sc.allDestroyedMs = sc.nowMs
			sc.simLogger.LogMilestone("all targets destroyed")
		}
	}

	if sc.outOfAmmoMs == 0 {
		armed, ammo := 0, 0
		for _, a := range sc.agents {
			if a.HasWeapon {
				armed++
				ammo += a.ammo
			}
		}
		if armed > 0 && ammo == 0 {
			sc.outOfAmmoMs = sc.nowMs
			sc.simLogger.LogMilestone("fleet out of ammunition")
		}
	}

	if sc.fleetWorldKnownMs == 0 {
		known := 0
		for _, a := range sc.agents {
			if a.worldKnown {
				known++
			}
		}
		if 2*known >= len(sc.agents) {
			sc.fleetWorldKnownMs = sc.nowMs
			sc.simLogger.LogMilestone("half the fleet believes the world known")
		}
	}
}

func (sc *SimulationController) ticksPerSecond() int64 {
	n := 1000 / sc.config.TickMs
	if n < 1 {
		n = 1
	}
	return n
}

func (sc *SimulationController) updateMetrics() {
	var uncertainty float64
	known := 0
	for _, a := range sc.agents {
		uncertainty += a.Store.World().Uncertainty()
		if a.worldKnown {
			known++
		}
	}
	uncertainty /= float64(len(sc.agents))

	destroyed := 0
	for _, t := range sc.truth.Targets() {
		if t.Destroyed {
			destroyed++
		}
	}
	stats := sc.commsStats()

	sc.simLogger.UpdateMetric("mean_uncertainty", uncertainty, "bits")
	sc.simLogger.UpdateMetric("agents_world_known", float64(known), "agents")
	sc.simLogger.UpdateMetric("targets_destroyed", float64(destroyed), "targets")
	sc.simLogger.UpdateMetric("messages_delivered", float64(stats.Delivered), "messages")
	sc.simLogger.UpdateMetric("messages_relayed", float64(stats.Relayed), "messages")
}

func (sc *SimulationController) commsStats() models.CommsStats {
	s := sc.network.Stats()
	return models.CommsStats{
		Transmitted:     s.Transmitted,
		Delivered:       s.Delivered,
		Relayed:         s.Relayed,
		RelayDropped:    s.RelayDropped,
		HopLimitDropped: s.HopLimitDropped,
		Evicted:         s.Evicted,
	}
}

// CommsStats returns the fleet-wide message counters
func (sc *SimulationController) CommsStats() models.CommsStats {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.commsStats()
}

// BeliefView renders one agent's current belief for an observer
func (sc *SimulationController) BeliefView(agentID int) models.BeliefViewResponse {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	resp := models.BeliefViewResponse{AgentID: agentID, TimeMs: sc.nowMs}
	a, ok := sc.byID[agentID]
	if !ok {
		return resp
	}
	world := a.Store.World()
	resp.Found = true
	resp.Uncertainty = world.Uncertainty()
	resp.Targets = make([]models.TargetBeliefView, 0, len(world.Targets))
	for _, id := range world.TargetIDs() {
		tb := world.Targets[id]
		resp.Targets = append(resp.Targets, models.TargetBeliefView{
			ID:                tb.ID,
			TypeProbabilities: append([]float64(nil), tb.TypeProbabilities...),
			North:             tb.Position.North,
			East:              tb.Position.East,
			Heading:           tb.Heading,
			Confidence:        tb.Confidence,
			Timestamp:         tb.Timestamp,
			Monitor:           taskView(tb.Status.Monitor),
			Attack:            taskView(tb.Status.Attack),
			Destroyed:         tb.Status.Destroyed,
		})
	}
	return resp
}

func taskView(r tasking.TaskRecord) models.TaskView {
	return models.TaskView{
		AgentID:   r.AgentID,
		Score:     r.Score,
		State:     r.State.String(),
		Timestamp: r.Timestamp,
	}
}

// Outcome summarizes the run for the report
func (sc *SimulationController) Outcome() reporting.RunOutcome {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	targets := sc.truth.Targets()
	out := reporting.RunOutcome{
		Reason:       sc.reason,
		Ticks:        sc.tick,
		SimTimeMs:    sc.nowMs,
		Agents:       len(sc.agents),
		Targets:      len(targets),
		WorldKnownMs: make(map[int]int64),
		Comms:        sc.commsStats(),

		AllFoundMs:          sc.allFoundMs,
		AllDestroyedMs:      sc.allDestroyedMs,
		OutOfAmmoMs:         sc.outOfAmmoMs,
		FleetWorldKnownMs:   sc.fleetWorldKnownMs,
		BelievedDestroyedMs: make(map[int]int64),
	}
	if out.Reason == "" {
		out.Reason = "stopped"
	}
	for _, t := range targets {
		if t.Destroyed {
			out.TargetsDestroyed++
		}
		out.TargetTimes = append(out.TargetTimes, reporting.TargetTiming{
			TargetID:    t.ID,
			FoundMs:     sc.foundAt[t.ID],
			DestroyedMs: sc.destroyedAt[t.ID],
		})
	}
	for _, a := range sc.agents {
		if at, ok := a.WorldKnownAt(); ok {
			out.WorldKnownMs[a.ID] = at
		}
		if at, ok := a.BelievesAllDestroyedAt(); ok {
			out.BelievedDestroyedMs[a.ID] = at
		}
	}
	if sc.buffer != nil {
		out.MirrorDropped = sc.buffer.GetStats().BatchesDropped
	}
	return out
}

// GetStatus returns a snapshot of the run for status displays
func (sc *SimulationController) GetStatus() map[string]interface{} {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	modes := map[string]int{}
	ammo := 0
	for _, a := range sc.agents {
		modes[a.mode.String()]++
		ammo += a.ammo
	}

	destroyed := 0
	targets := sc.truth.Targets()
	for _, t := range targets {
		if t.Destroyed {
			destroyed++
		}
	}

	return map[string]interface{}{
		"start_time":             sc.startTime,
		"wall_time":              time.Since(sc.startTime).String(),
		"tick":                   sc.tick,
		"sim_time_ms":            sc.nowMs,
		"finished":               sc.finished,
		"reason":                 sc.reason,
		"agents":                 len(sc.agents),
		"searching":              modes[ModeSearch.String()],
		"monitoring":             modes[ModeMonitor.String()],
		"attacking":              modes[ModeAttack.String()],
		"ammo_remaining":         ammo,
		"targets":                len(targets),
		"targets_destroyed":      destroyed,
		"detections":             sc.detections,
		"total_engagements":      sc.totalEngagements,
		"successful_engagements": sc.successfulEngagements,
	}
}
