package core

import (
	"sort"
	"sync"

	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/models"
)

// UpdateBuffer collects per-entity state during a tick and publishes one
// StateUpdate per flush to a bounded channel. Publishing never blocks the
// simulation: when the channel is full the batch is dropped and counted.
type UpdateBuffer struct {
	agents  map[int]*models.AgentState
	targets map[int]*models.TargetState
	out     chan models.StateUpdate
	mu      sync.Mutex
	stats   UpdateStats
}

// UpdateStats tracks update statistics
type UpdateStats struct {
	TotalUpdates   int64
	BatchesSent    int64
	BatchesDropped int64
	LastBatchTick  int64
}

// NewUpdateBuffer creates a buffer whose channel holds up to queueSize batches
func NewUpdateBuffer(queueSize int) *UpdateBuffer {
	if queueSize < 1 {
		queueSize = 1
	}
	return &UpdateBuffer{
		agents:  make(map[int]*models.AgentState),
		targets: make(map[int]*models.TargetState),
		out:     make(chan models.StateUpdate, queueSize),
	}
}

// Updates is the channel observers drain
func (ub *UpdateBuffer) Updates() <-chan models.StateUpdate {
	return ub.out
}

// QueueAgentUpdate records an agent's latest state; later calls in the same
// tick replace earlier ones
func (ub *UpdateBuffer) QueueAgentUpdate(state models.AgentState) {
	ub.mu.Lock()
	defer ub.mu.Unlock()

	s := state
	ub.agents[state.ID] = &s
	ub.stats.TotalUpdates++
}

// QueueTargetUpdate records a target's latest state
func (ub *UpdateBuffer) QueueTargetUpdate(state models.TargetState) {
	ub.mu.Lock()
	defer ub.mu.Unlock()

	s := state
	ub.targets[state.ID] = &s
	ub.stats.TotalUpdates++
}

// Flush publishes the pending states as one batch and clears the buffer.
// It reports whether the batch was accepted.
func (ub *UpdateBuffer) Flush(tick, timeMs int64, comms models.CommsStats) bool {
	ub.mu.Lock()
	update := models.StateUpdate{
		Tick:    tick,
		TimeMs:  timeMs,
		Agents:  make([]models.AgentState, 0, len(ub.agents)),
		Targets: make([]models.TargetState, 0, len(ub.targets)),
		Comms:   comms,
	}
	for _, a := range ub.agents {
		update.Agents = append(update.Agents, *a)
	}
	for _, t := range ub.targets {
		update.Targets = append(update.Targets, *t)
	}
	ub.agents = make(map[int]*models.AgentState)
	ub.targets = make(map[int]*models.TargetState)
	ub.mu.Unlock()

	sort.Slice(update.Agents, func(i, j int) bool { return update.Agents[i].ID < update.Agents[j].ID })
	sort.Slice(update.Targets, func(i, j int) bool { return update.Targets[i].ID < update.Targets[j].ID })

	select {
	case ub.out <- update:
		ub.mu.Lock()
		ub.stats.BatchesSent++
		ub.stats.LastBatchTick = tick
		ub.mu.Unlock()
		return true
	default:
		ub.mu.Lock()
		ub.stats.BatchesDropped++
		dropped := ub.stats.BatchesDropped
		ub.mu.Unlock()
		if dropped == 1 || dropped%100 == 0 {
			logger.Warnf("Mirror queue full, dropped %d state updates so far", dropped)
		}
		return false
	}
}

// GetStats returns current buffer statistics
func (ub *UpdateBuffer) GetStats() UpdateStats {
	ub.mu.Lock()
	defer ub.mu.Unlock()
	return ub.stats
}

// GetPendingCount returns the number of entities waiting for the next flush
func (ub *UpdateBuffer) GetPendingCount() int {
	ub.mu.Lock()
	defer ub.mu.Unlock()
	return len(ub.agents) + len(ub.targets)
}
