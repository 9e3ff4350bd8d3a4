package core

import (
	"math"
	"math/rand"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
)

// EngagementConfig holds the attack model
type EngagementConfig struct {
	RangeM          float64
	KillProbability float64

	// TypeModifiers scales the kill probability per target type. Missing
	// entries count as 1.
	TypeModifiers []float64
}

// EngagementCalculator resolves attacks. All draws come from the injected
// random source.
type EngagementCalculator struct {
	cfg EngagementConfig
	rng *rand.Rand
}

// EngagementResult represents the outcome of an engagement
type EngagementResult struct {
	AttackerID  int
	TargetID    int
	Success     bool
	Distance    float64
	Probability float64
	Time        int64
}

// NewEngagementCalculator creates a new engagement calculator
func NewEngagementCalculator(cfg EngagementConfig, rng *rand.Rand) *EngagementCalculator {
	if rng == nil {
		panic("core: nil random source")
	}
	return &EngagementCalculator{cfg: cfg, rng: rng}
}

// CanEngage checks range and ammunition
func (ec *EngagementCalculator) CanEngage(ammo int, distance float64) bool {
	return ammo > 0 && distance <= ec.cfg.RangeM
}

// SuccessProbability is the kill probability at distance against targetType
func (ec *EngagementCalculator) SuccessProbability(distance float64, targetType int) float64 {
	if distance > ec.cfg.RangeM || ec.cfg.RangeM <= 0 {
		return 0
	}
	prob := ec.cfg.KillProbability

	// Linear falloff, 30% reduction at max range
	prob *= 1.0 - 0.3*(distance/ec.cfg.RangeM)

	if targetType >= 0 && targetType < len(ec.cfg.TypeModifiers) {
		prob *= ec.cfg.TypeModifiers[targetType]
	}
	return math.Max(0.0, math.Min(1.0, prob))
}

// CalculateEngagement rolls one attack. The caller spends the ammunition.
func (ec *EngagementCalculator) CalculateEngagement(attackerID int, from geo.Point, targetID, targetType int, at geo.Point, now int64) EngagementResult {
	distance := from.DistanceTo(at)
	prob := ec.SuccessProbability(distance, targetType)
	return EngagementResult{
		AttackerID:  attackerID,
		TargetID:    targetID,
		Success:     ec.rng.Float64() < prob,
		Distance:    distance,
		Probability: prob,
		Time:        now,
	}
}

// AgentStatus is what the scorer needs to know about its agent
type AgentStatus interface {
	Position() geo.Point
	AmmoRemaining() int
}

// TaskScorer rates tasks for one agent. Nearer targets score higher; attack
// scores are weighted by the expected kill probability at weapon range.
type TaskScorer struct {
	agent       AgentStatus
	engagement  *EngagementCalculator
	distanceRef float64
}

// NewTaskScorer creates a scorer. distanceRef is the distance at which the
// proximity term halves.
func NewTaskScorer(agent AgentStatus, engagement *EngagementCalculator, distanceRef float64) *TaskScorer {
	if distanceRef <= 0 {
		distanceRef = 1
	}
	return &TaskScorer{agent: agent, engagement: engagement, distanceRef: distanceRef}
}

// Score implements auction.Scorer
func (s *TaskScorer) Score(task tasking.TaskType, target *belief.TargetBelief) (float64, bool) {
	if target.Status.Destroyed {
		return 0, false
	}
	proximity := 1.0 / (1.0 + s.agent.Position().DistanceTo(target.Position)/s.distanceRef)

	switch task {
	case tasking.Monitor:
		return proximity, true
	case tasking.Attack:
		if s.engagement == nil || s.agent.AmmoRemaining() <= 0 {
			return 0, false
		}
		typ, _ := target.MostLikelyType()
		return proximity * s.engagement.SuccessProbability(0, typ), true
	default:
		return 0, false
	}
}
