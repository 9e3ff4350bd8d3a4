package tasking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordMergeRules(t *testing.T) {
	tests := []struct {
		name    string
		local   TaskRecord
		other   TaskRecord
		want    TaskRecord
		changed bool
	}{
		{
			name:    "higher score wins",
			local:   TaskRecord{AgentID: 1, Score: 0.4, State: Bidding, Timestamp: 10},
			other:   TaskRecord{AgentID: 2, Score: 0.6, State: Bidding, Timestamp: 5},
			want:    TaskRecord{AgentID: 2, Score: 0.6, State: Bidding, Timestamp: 5},
			changed: true,
		},
		{
			name:  "equal score keeps local",
			local: TaskRecord{AgentID: 1, Score: 0.5, State: Assigned, Timestamp: 10},
			other: TaskRecord{AgentID: 2, Score: 0.5, State: Bidding, Timestamp: 20},
			want:  TaskRecord{AgentID: 1, Score: 0.5, State: Assigned, Timestamp: 10},
		},
		{
			name:    "complete beats higher score",
			local:   TaskRecord{AgentID: 1, Score: 0.9, State: Assigned},
			other:   TaskRecord{AgentID: 2, Score: 0.1, State: Complete, Timestamp: 99},
			want:    TaskRecord{AgentID: 2, Score: 0.1, State: Complete, Timestamp: 99},
			changed: true,
		},
		{
			name:  "local complete is absorbing",
			local: TaskRecord{AgentID: 1, Score: 0.1, State: Complete},
			other: TaskRecord{AgentID: 2, Score: 0.9, State: Complete},
			want:  TaskRecord{AgentID: 1, Score: 0.1, State: Complete},
		},
		{
			name:    "unclaimed loses to any bid",
			local:   NewTaskRecord(),
			other:   TaskRecord{AgentID: 4, Score: 0, State: Bidding},
			want:    TaskRecord{AgentID: 4, Score: 0, State: Bidding},
			changed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.local
			assert.Equal(t, tt.changed, rec.Merge(tt.other))
			assert.Equal(t, tt.want, rec)
		})
	}
}

func TestCompletionDominatesAnyOrder(t *testing.T) {
	done := TaskRecord{AgentID: 7, Score: 0.2, State: Complete, Timestamp: 40}
	bids := []TaskRecord{
		{AgentID: 1, Score: 0.9, State: Bidding},
		{AgentID: 2, Score: 0.95, State: Assigned},
		{AgentID: 3, Score: 0.3, State: Bidding},
	}

	// Insert the completion at every position of the merge sequence.
	for pos := 0; pos <= len(bids); pos++ {
		seq := append([]TaskRecord{}, bids[:pos]...)
		seq = append(seq, done)
		seq = append(seq, bids[pos:]...)

		rec := NewTaskRecord()
		for _, r := range seq {
			rec.Merge(r)
		}
		assert.Equal(t, done, rec, "completion at position %d", pos)
	}
}

func TestStatusMerge(t *testing.T) {
	a := NewTaskStatus()
	b := NewTaskStatus()
	b.Monitor = TaskRecord{AgentID: 2, Score: 0.7, State: Bidding}
	b.Destroyed = true

	assert.True(t, a.Merge(b))
	assert.Equal(t, 2, a.Monitor.AgentID)
	assert.False(t, a.Attack.Claimed())
	assert.True(t, a.Destroyed)

	// Destroyed never reverts.
	assert.False(t, a.Merge(NewTaskStatus()))
	assert.True(t, a.Destroyed)
}

func TestStatusComplete(t *testing.T) {
	s := NewTaskStatus()
	s.Attack = TaskRecord{AgentID: 1, Score: 0.5, State: Assigned}

	s.Complete(Attack, 3, 1200)
	assert.Equal(t, TaskRecord{AgentID: 3, Score: 0.5, State: Complete, Timestamp: 1200}, s.Attack)

	s.Complete(Attack, 4, 1300)
	assert.Equal(t, 3, s.Attack.AgentID)
	assert.Equal(t, Monitor, TaskTypes[0])
	assert.Equal(t, "attack", Attack.String())
}
