package belief

import (
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
)

// Observation is a local sensor report about one target
type Observation struct {
	TargetID   int
	TypeIndex  int
	TypeProb   float64
	Position   geo.Point
	Heading    float64
	Confidence float64
}

// Store owns one agent's WorldBelief together with the fusion settings and
// broadcast schedule
type Store struct {
	cfg   Config
	world *WorldBelief

	lastBroadcast int64
	broadcasted   bool

	worldKnownAt int64
	worldKnown   bool
}

// NewStore creates the belief store for agent owner
func NewStore(cfg Config, owner, rows, cols int) *Store {
	return &Store{
		cfg:   cfg,
		world: NewWorldBelief(owner, rows, cols, cfg.NumTargetTypes),
	}
}

// Config returns the fusion settings
func (s *Store) Config() Config { return s.cfg }

// World returns the live belief. Callers must not hand it to other agents;
// use Snapshot for that.
func (s *Store) World() *WorldBelief { return s.world }

// Snapshot returns a deep copy suitable for transmission
func (s *Store) Snapshot() *WorldBelief { return s.world.Clone() }

// Target returns the live belief about one target
func (s *Store) Target(id int) (*TargetBelief, bool) {
	tb, ok := s.world.Targets[id]
	return tb, ok
}

// ObserveCell records a local presence estimate for one cell and type
func (s *Store) ObserveCell(row, col, typeIdx int, prob, heading float64, now int64) {
	s.world.Cell(row, col).UpdateLocal(typeIdx, prob, heading, now)
}

// ObserveTarget records a local sighting. The target is created on first
// sighting. It returns true when the target was previously unknown.
func (s *Store) ObserveTarget(obs Observation, now int64) bool {
	tb, ok := s.world.Targets[obs.TargetID]
	if !ok {
		tb = NewTargetBelief(obs.TargetID, s.cfg.NumTargetTypes)
		s.world.Targets[obs.TargetID] = tb
	}
	tb.SetTypeProbability(obs.TypeIndex, obs.TypeProb, s.cfg.ProbabilityFloor)
	tb.Position = obs.Position
	tb.Heading = obs.Heading
	tb.Confidence = obs.Confidence
	tb.Timestamp = now
	return !ok
}

// Merge fuses a received snapshot into the local belief
func (s *Store) Merge(snapshot *WorldBelief) MergeStats {
	return s.world.Merge(snapshot, s.cfg.Alpha)
}

// MergeTarget fuses a single received target belief
func (s *Store) MergeTarget(tb *TargetBelief) (added, updated bool) {
	return s.world.MergeTarget(tb, s.cfg.Alpha)
}

// Decay ages every target's confidence by dtMs of simulated time
func (s *Store) Decay(dtMs int64) {
	amount := s.cfg.ConfidenceDecayPerSec * float64(dtMs) / 1000
	if amount <= 0 {
		return
	}
	for _, tb := range s.world.Targets {
		tb.Decay(amount)
	}
}

// BroadcastDue reports whether a broadcast is due at now and, if so, records
// it as sent. The first call is always due.
func (s *Store) BroadcastDue(now int64) bool {
	if s.broadcasted && now-s.lastBroadcast < s.cfg.BroadcastIntervalMs {
		return false
	}
	s.lastBroadcast = now
	s.broadcasted = true
	return true
}

// CheckWorldKnown latches the first time the belief's uncertainty drops to
// the configured threshold and returns that time
func (s *Store) CheckWorldKnown(now int64) (int64, bool) {
	if !s.worldKnown && s.world.Uncertainty() <= s.cfg.WorldKnownUncertainty {
		s.worldKnown = true
		s.worldKnownAt = now
	}
	return s.worldKnownAt, s.worldKnown
}
