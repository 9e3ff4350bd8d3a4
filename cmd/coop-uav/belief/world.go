package belief

import (
	"fmt"
	"math"
	"sort"
)

// WorldBelief is one agent's full picture: a grid of cell beliefs and the set
// of targets it knows about. It is the payload of a belief broadcast.
type WorldBelief struct {
	Owner   int                   `json:"owner"`
	Rows    int                   `json:"rows"`
	Cols    int                   `json:"cols"`
	Cells   []CellBelief          `json:"cells"`
	Targets map[int]*TargetBelief `json:"targets"`
}

// NewWorldBelief returns a uniform-prior grid with no known targets
func NewWorldBelief(owner, rows, cols, numTypes int) *WorldBelief {
	w := &WorldBelief{
		Owner:   owner,
		Rows:    rows,
		Cols:    cols,
		Cells:   make([]CellBelief, rows*cols),
		Targets: make(map[int]*TargetBelief),
	}
	for i := range w.Cells {
		w.Cells[i] = NewCellBelief(numTypes)
	}
	return w
}

// Cell returns the belief for (row, col)
func (w *WorldBelief) Cell(row, col int) *CellBelief {
	if row < 0 || row >= w.Rows || col < 0 || col >= w.Cols {
		panic(fmt.Sprintf("belief: cell (%d,%d) outside %dx%d grid", row, col, w.Rows, w.Cols))
	}
	return &w.Cells[row*w.Cols+col]
}

// TargetIDs returns the known target IDs in ascending order
func (w *WorldBelief) TargetIDs() []int {
	ids := make([]int, 0, len(w.Targets))
	for id := range w.Targets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MergeStats counts what a world merge changed
type MergeStats struct {
	CellsUpdated   int
	TargetsUpdated int
	TargetsAdded   int
}

// Changed reports whether the merge changed anything
func (s MergeStats) Changed() bool {
	return s.CellsUpdated+s.TargetsUpdated+s.TargetsAdded > 0
}

// Merge fuses other into w. Targets unknown to w are adopted as copies.
func (w *WorldBelief) Merge(other *WorldBelief, alpha float64) MergeStats {
	var stats MergeStats
	if other.Rows != w.Rows || other.Cols != w.Cols {
		panic(fmt.Sprintf("belief: merging %dx%d grid into %dx%d grid", other.Rows, other.Cols, w.Rows, w.Cols))
	}
	for i := range w.Cells {
		if w.Cells[i].Merge(&other.Cells[i], alpha) {
			stats.CellsUpdated++
		}
	}
	for _, id := range other.TargetIDs() {
		added, updated := w.MergeTarget(other.Targets[id], alpha)
		switch {
		case added:
			stats.TargetsAdded++
		case updated:
			stats.TargetsUpdated++
		}
	}
	return stats
}

// MergeTarget fuses one target belief, adopting a copy if it is new
func (w *WorldBelief) MergeTarget(tb *TargetBelief, alpha float64) (added, updated bool) {
	mine, ok := w.Targets[tb.ID]
	if !ok {
		w.Targets[tb.ID] = tb.Clone()
		return true, false
	}
	return false, mine.Merge(tb, alpha)
}

// Clone returns a deep copy
func (w *WorldBelief) Clone() *WorldBelief {
	c := &WorldBelief{
		Owner:   w.Owner,
		Rows:    w.Rows,
		Cols:    w.Cols,
		Cells:   make([]CellBelief, len(w.Cells)),
		Targets: make(map[int]*TargetBelief, len(w.Targets)),
	}
	for i := range w.Cells {
		c.Cells[i] = w.Cells[i].Clone()
	}
	for id, tb := range w.Targets {
		c.Targets[id] = tb.Clone()
	}
	return c
}

// Uncertainty returns the mean binary Shannon entropy, in bits, over every
// cell and type. 1 means nothing is known; 0 means every estimate is certain.
func (w *WorldBelief) Uncertainty() float64 {
	if len(w.Cells) == 0 {
		return 0
	}
	total := 0.0
	for i := range w.Cells {
		total += w.Cells[i].Uncertainty()
	}
	return total / float64(len(w.Cells))
}

// BelievesAllTargetsDestroyed reports whether at least expected targets are
// known and every known target is believed destroyed
func (w *WorldBelief) BelievesAllTargetsDestroyed(expected int) bool {
	if len(w.Targets) < expected || len(w.Targets) == 0 {
		return false
	}
	for _, tb := range w.Targets {
		if !tb.Status.Destroyed {
			return false
		}
	}
	return true
}

func binaryEntropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p*math.Log2(p) - (1-p)*math.Log2(1-p)
}
