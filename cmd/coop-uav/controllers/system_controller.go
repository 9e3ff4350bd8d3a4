package controllers

import (
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/auction"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/reporting"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
)

// TaskAllocator decides, once per tick and agent, whether the agent keeps
// its task or bids for a new one. Ownership itself is settled by the
// auction manager and task status merges.
type TaskAllocator struct {
	simLogger *reporting.SimulationLogger
	log       logger.Logger
}

// NewTaskAllocator creates an allocator that reports task changes to simLogger
func NewTaskAllocator(simLogger *reporting.SimulationLogger) *TaskAllocator {
	return &TaskAllocator{
		simLogger: simLogger,
		log:       logger.WithPrefix("allocator"),
	}
}

// Step runs the allocator for one agent
func (ta *TaskAllocator) Step(a *Agent, now int64) {
	// See if the agent still owns its task, refresh its score
	switch a.mode {
	case ModeMonitor, ModeAttack:
		ta.checkForUpdates(a, now)
	}

	if a.mode == ModeSearch && !a.hasPending {
		ta.bidOnTasks(a, now)
	}
}

// Adopt makes a won auction the agent's task if it is free
func (ta *TaskAllocator) Adopt(a *Agent, key auction.Key, now int64) bool {
	if a.mode != ModeSearch {
		return false
	}
	from := a.mode
	a.assign(key)
	ta.simLogger.LogTaskChange(a.ID, from.String(), a.mode.String(), key.TargetID)
	return true
}

// Release returns the agent to search
func (ta *TaskAllocator) Release(a *Agent, reason string) {
	if a.mode == ModeSearch {
		return
	}
	from, target := a.mode, a.task.TargetID
	a.release()
	ta.log.Debugf("Agent %d released %s on target %d: %s", a.ID, from, target, reason)
	ta.simLogger.LogTaskChange(a.ID, from.String(), a.mode.String(), target)
}

func (ta *TaskAllocator) checkForUpdates(a *Agent, now int64) {
	target, ok := a.Store.Target(a.task.TargetID)
	if !ok {
		ta.Release(a, "target unknown")
		return
	}
	rec := target.Status.Record(a.task.Task)

	switch {
	case rec.State == tasking.Complete || target.Status.Destroyed:
		// Someone finished the task. Go do something else.
		ta.Release(a, "task complete")
	case rec.AgentID == a.ID:
		// Still the owner
		if score, ok := a.scorer.inner.Score(a.task.Task, target); ok {
			rec.Score = score
			rec.Timestamp = now
		}
	default:
		// Someone else has a better score
		ta.Release(a, "outbid")
	}
}

// bidOnTasks scores every open task the agent knows of and bids on the best
// attack it can win, else the best monitor
func (ta *TaskAllocator) bidOnTasks(a *Agent, now int64) {
	world := a.Store.World()

	var bestAttack, bestMonitor *belief.TargetBelief
	bestAttackScore, bestMonitorScore := -1.0, -1.0

	for _, id := range world.TargetIDs() {
		tb := world.Targets[id]
		if tb.Status.Destroyed {
			continue
		}

		// An attack opens once it has been claimed or the target has been
		// monitored
		atk := tb.Status.Attack
		open := atk.State != tasking.NoTask || tb.Status.Monitor.State == tasking.Complete
		if open && atk.State != tasking.Complete {
			if score, ok := a.scorer.inner.Score(tasking.Attack, tb); ok && score > atk.Score && score > bestAttackScore {
				bestAttack, bestAttackScore = tb, score
			}
		}

		mon := tb.Status.Monitor
		if mon.State != tasking.Complete {
			if score, ok := a.scorer.inner.Score(tasking.Monitor, tb); ok && score > mon.Score && score > bestMonitorScore {
				bestMonitor, bestMonitorScore = tb, score
			}
		}
	}

	switch {
	case bestAttack != nil:
		ta.bid(a, tasking.Attack, bestAttack.ID, now)
	case bestMonitor != nil:
		ta.bid(a, tasking.Monitor, bestMonitor.ID, now)
	}
	// else keep searching
}

func (ta *TaskAllocator) bid(a *Agent, task tasking.TaskType, targetID int, now int64) {
	score, ok := a.Auctions.Bid(task, targetID, now)
	if !ok {
		return
	}
	a.setPending(auction.Key{Task: task, TargetID: targetID})
	ta.simLogger.LogBid(a.ID, tasking.NoAgent, task.String(), targetID, score)
}
