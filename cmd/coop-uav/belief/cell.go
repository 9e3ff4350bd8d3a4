// Package belief holds an agent's probabilistic picture of the world and
// fuses pictures received from other agents.
//
// Every estimate carries a pseudo-timestamp. A merge only moves the receiver
// toward a strictly fresher source, and advances the receiver's timestamp by
// (1-alpha) of the gap instead of copying it. The receiver therefore stays
// older than its source, so a later merge from the same source still applies
// while merges back toward a staler agent are rejected.
package belief

import "fmt"

// Estimate is one fused quantity for one target type
type Estimate struct {
	Probability float64 `json:"p"`
	Heading     float64 `json:"h"`
	Timestamp   int64   `json:"t"`
}

// merge blends other into e when other is strictly fresher
func (e *Estimate) merge(other Estimate, alpha float64) bool {
	if e.Timestamp >= other.Timestamp {
		return false
	}
	gap := other.Timestamp - e.Timestamp
	e.Probability = alpha*other.Probability + (1-alpha)*e.Probability
	e.Heading = alpha*other.Heading + (1-alpha)*e.Heading
	// truncated toward zero
	e.Timestamp += int64((1 - alpha) * float64(gap))
	return true
}

// CellBelief holds independent per-type presence estimates for one grid cell.
// Probabilities across types are not normalized.
type CellBelief struct {
	Estimates []Estimate `json:"e"`
}

// NewCellBelief returns a cell with the uniform prior over numTypes types
func NewCellBelief(numTypes int) CellBelief {
	c := CellBelief{Estimates: make([]Estimate, numTypes)}
	c.Reset()
	return c
}

// Reset restores the uniform prior with zero heading and timestamp
func (c *CellBelief) Reset() {
	if len(c.Estimates) == 0 {
		return
	}
	prior := 1.0 / float64(len(c.Estimates))
	for i := range c.Estimates {
		c.Estimates[i] = Estimate{Probability: prior}
	}
}

// UpdateLocal overwrites the estimate for one type with a local observation
func (c *CellBelief) UpdateLocal(typeIdx int, prob, heading float64, ts int64) {
	c.checkIndex(typeIdx)
	c.Estimates[typeIdx] = Estimate{Probability: prob, Heading: heading, Timestamp: ts}
}

// Merge fuses other into c type by type and reports whether anything changed
func (c *CellBelief) Merge(other *CellBelief, alpha float64) bool {
	if len(other.Estimates) != len(c.Estimates) {
		panic(fmt.Sprintf("belief: merging cell with %d types into cell with %d", len(other.Estimates), len(c.Estimates)))
	}
	changed := false
	for i := range c.Estimates {
		if c.Estimates[i].merge(other.Estimates[i], alpha) {
			changed = true
		}
	}
	return changed
}

// Uncertainty is the mean binary entropy of the cell's estimates in bits
func (c *CellBelief) Uncertainty() float64 {
	if len(c.Estimates) == 0 {
		return 0
	}
	total := 0.0
	for _, e := range c.Estimates {
		total += binaryEntropy(e.Probability)
	}
	return total / float64(len(c.Estimates))
}

// Clone returns a deep copy
func (c CellBelief) Clone() CellBelief {
	return CellBelief{Estimates: append([]Estimate(nil), c.Estimates...)}
}

func (c *CellBelief) checkIndex(typeIdx int) {
	if typeIdx < 0 || typeIdx >= len(c.Estimates) {
		panic(fmt.Sprintf("belief: target type %d out of range [0,%d)", typeIdx, len(c.Estimates)))
	}
}
