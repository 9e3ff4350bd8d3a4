// Package tasking tracks who owns the monitor and attack tasks of a target
// and how independently held views of that ownership converge.
package tasking

import "fmt"

// NoAgent marks a task record that nobody has claimed
const NoAgent = -1

// TaskType is the kind of work a target needs
type TaskType int

const (
	Monitor TaskType = iota
	Attack
)

// TaskTypes lists every task type in allocation order
var TaskTypes = []TaskType{Monitor, Attack}

func (t TaskType) String() string {
	switch t {
	case Monitor:
		return "monitor"
	case Attack:
		return "attack"
	default:
		return fmt.Sprintf("task(%d)", int(t))
	}
}

// TaskState is the progress of a task record
type TaskState int

const (
	NoTask TaskState = iota
	Bidding
	Assigned
	Complete
)

func (s TaskState) String() string {
	switch s {
	case NoTask:
		return "no_task"
	case Bidding:
		return "bidding"
	case Assigned:
		return "assigned"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TaskRecord is one agent's claim on a task. The timestamp travels with the
// record when it wins a merge.
type TaskRecord struct {
	AgentID   int
	Score     float64
	State     TaskState
	Timestamp int64
}

// NewTaskRecord returns an unclaimed record
func NewTaskRecord() TaskRecord {
	return TaskRecord{AgentID: NoAgent, Score: -1, State: NoTask}
}

// Merge folds other into r. Completion is absorbing and wins over any score;
// otherwise the strictly higher score wins.
func (r *TaskRecord) Merge(other TaskRecord) bool {
	switch {
	case other.State == Complete && r.State != Complete:
		*r = other
		return true
	case other.State != Complete && r.State != Complete && other.Score > r.Score:
		*r = other
		return true
	default:
		return false
	}
}

// Claimed reports whether an agent owns the record
func (r TaskRecord) Claimed() bool {
	return r.AgentID != NoAgent
}

// TaskStatus is the per-target ownership of both task types
type TaskStatus struct {
	Monitor   TaskRecord
	Attack    TaskRecord
	Destroyed bool
}

// NewTaskStatus returns a status with both tasks unclaimed
func NewTaskStatus() TaskStatus {
	return TaskStatus{Monitor: NewTaskRecord(), Attack: NewTaskRecord()}
}

// Record returns the record for t
func (s *TaskStatus) Record(t TaskType) *TaskRecord {
	if t == Attack {
		return &s.Attack
	}
	return &s.Monitor
}

// Merge folds other into s record by record. Destroyed is absorbing.
func (s *TaskStatus) Merge(other TaskStatus) bool {
	changed := s.Monitor.Merge(other.Monitor)
	if s.Attack.Merge(other.Attack) {
		changed = true
	}
	if other.Destroyed && !s.Destroyed {
		s.Destroyed = true
		changed = true
	}
	return changed
}

// Complete marks the record for t complete under agentID
func (s *TaskStatus) Complete(t TaskType, agentID int, now int64) {
	rec := s.Record(t)
	if rec.State == Complete {
		return
	}
	rec.AgentID = agentID
	rec.State = Complete
	rec.Timestamp = now
}
