package belief

import (
	"fmt"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
)

// normalizeEpsilon is the smallest vector mass that will be renormalized
const normalizeEpsilon = 1e-6

// TargetBelief is an agent's estimate of one detected target. The type
// probabilities always sum to one.
type TargetBelief struct {
	ID                int                `json:"id"`
	TypeProbabilities []float64          `json:"types"`
	Position          geo.Point          `json:"position"`
	Heading           float64            `json:"heading"`
	Confidence        float64            `json:"confidence"`
	Timestamp         int64              `json:"ts"`
	Status            tasking.TaskStatus `json:"status"`
}

// NewTargetBelief returns a belief with a uniform type distribution and no
// claimed tasks
func NewTargetBelief(id, numTypes int) *TargetBelief {
	tb := &TargetBelief{
		ID:                id,
		TypeProbabilities: make([]float64, numTypes),
		Status:            tasking.NewTaskStatus(),
	}
	for i := range tb.TypeProbabilities {
		tb.TypeProbabilities[i] = 1.0 / float64(numTypes)
	}
	return tb
}

// SetTypeProbability writes one type probability and renormalizes the
// vector. A positive floor clamps the written value into [floor, 1-floor]
// so no type collapses to exactly zero or one.
func (tb *TargetBelief) SetTypeProbability(typeIdx int, prob, floor float64) {
	if typeIdx < 0 || typeIdx >= len(tb.TypeProbabilities) {
		panic(fmt.Sprintf("belief: target type %d out of range [0,%d)", typeIdx, len(tb.TypeProbabilities)))
	}
	if floor > 0 {
		prob = clamp(prob, floor, 1-floor)
	}
	tb.TypeProbabilities[typeIdx] = prob
	tb.normalize()
}

// MostLikelyType returns the type index with the highest probability
func (tb *TargetBelief) MostLikelyType() (int, float64) {
	best, bestP := 0, -1.0
	for i, p := range tb.TypeProbabilities {
		if p > bestP {
			best, bestP = i, p
		}
	}
	return best, bestP
}

// Merge fuses other into tb. Task status always merges; the kinematic and
// type estimates only move toward a strictly fresher source.
func (tb *TargetBelief) Merge(other *TargetBelief, alpha float64) bool {
	if other == nil || other.ID != tb.ID {
		return false
	}
	changed := tb.Status.Merge(other.Status)

	if tb.Timestamp >= other.Timestamp {
		return changed
	}
	if len(other.TypeProbabilities) != len(tb.TypeProbabilities) {
		panic(fmt.Sprintf("belief: merging target with %d types into target with %d", len(other.TypeProbabilities), len(tb.TypeProbabilities)))
	}

	gap := other.Timestamp - tb.Timestamp
	for i := range tb.TypeProbabilities {
		tb.TypeProbabilities[i] = alpha*other.TypeProbabilities[i] + (1-alpha)*tb.TypeProbabilities[i]
	}
	tb.normalize()
	tb.Position = tb.Position.Interpolate(other.Position, alpha)
	tb.Heading = alpha*other.Heading + (1-alpha)*tb.Heading
	tb.Confidence = alpha*other.Confidence + (1-alpha)*tb.Confidence
	tb.Timestamp += int64((1 - alpha) * float64(gap))
	return true
}

// Decay lowers confidence by amount, never below zero
func (tb *TargetBelief) Decay(amount float64) {
	tb.Confidence -= amount
	if tb.Confidence < 0 {
		tb.Confidence = 0
	}
}

// Clone returns a deep copy
func (tb *TargetBelief) Clone() *TargetBelief {
	c := *tb
	c.TypeProbabilities = append([]float64(nil), tb.TypeProbabilities...)
	return &c
}

func (tb *TargetBelief) normalize() {
	sum := 0.0
	for _, p := range tb.TypeProbabilities {
		sum += p
	}
	if sum <= normalizeEpsilon {
		// Every type was written down to nothing; fall back to the prior
		for i := range tb.TypeProbabilities {
			tb.TypeProbabilities[i] = 1 / float64(len(tb.TypeProbabilities))
		}
		return
	}
	for i := range tb.TypeProbabilities {
		tb.TypeProbabilities[i] /= sum
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
